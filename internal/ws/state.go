package ws

import "sync/atomic"

// ConnState is the lifecycle phase of the stream connection.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connState tracks the lifecycle phase. The dial path, the reconnect loop,
// and Close race with each other, so every transition with more than one
// possible writer goes through transition.
type connState struct {
	v atomic.Int32
}

func (s *connState) load() ConnState {
	return ConnState(s.v.Load())
}

func (s *connState) store(next ConnState) {
	s.v.Store(int32(next))
}

// transition swaps from one phase to the next, reporting whether this caller
// won the race.
func (s *connState) transition(from, to ConnState) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}

// shutdown moves any live phase to StateClosed. It reports false when the
// state was already closed, so Close runs its teardown exactly once.
func (s *connState) shutdown() bool {
	for {
		current := s.v.Load()
		if ConnState(current) == StateClosed {
			return false
		}
		if s.v.CompareAndSwap(current, int32(StateClosed)) {
			return true
		}
	}
}
