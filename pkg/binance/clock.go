package binance

import (
	"context"
	"sync"
	"time"
)

// offsetNoiseFloor is the measured offset magnitude below which the local
// clock is considered in agreement with the server. Differences under this
// threshold are dominated by network jitter, so the stored offset is pinned
// to zero instead of chasing them.
const offsetNoiseFloor = 50 * time.Millisecond

// timeProbe fetches the current server time.
type timeProbe func(ctx context.Context) (time.Time, error)

// serverClock tracks the local-vs-server time offset used to stamp signed
// requests. The offset and the synced flag are updated together under one
// lock so a reader can never observe a torn pair.
type serverClock struct {
	probe          timeProbe
	auto           bool
	recalcInterval time.Duration

	mu       sync.Mutex
	offset   time.Duration
	synced   bool
	lastSync time.Time
	warmedUp bool
}

func newServerClock(probe timeProbe, auto bool, recalcInterval time.Duration) *serverClock {
	return &serverClock{
		probe:          probe,
		auto:           auto,
		recalcInterval: recalcInterval,
	}
}

// EnsureSynced makes sure the clock offset is fresh enough to stamp a signed
// request and returns the current server time estimate.
//
// With auto sync disabled it performs a single probe and returns the raw
// server time without tracking any offset. With auto sync enabled it returns
// immediately when the last successful sync is within the recalculation
// interval; otherwise it probes the server, discarding one extra warm-up
// probe on the very first call of the client's lifetime (the first
// round-trip on a cold connection is systematically slower and would bias
// the offset estimate).
//
// A failed probe leaves the clock state untouched and returns the transport
// error.
func (c *serverClock) EnsureSynced(ctx context.Context) (time.Time, error) {
	if !c.auto {
		return c.probe(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.synced && time.Since(c.lastSync) < c.recalcInterval {
		return time.Now().Add(c.offset), nil
	}

	if !c.warmedUp {
		c.warmedUp = true
		if _, err := c.probe(ctx); err != nil {
			return time.Time{}, err
		}
	}

	local := time.Now()
	server, err := c.probe(ctx)
	if err != nil {
		return time.Time{}, err
	}

	offset := server.Sub(local)
	if offset.Abs() < offsetNoiseFloor {
		offset = 0
	}

	c.offset = offset
	c.synced = true
	c.lastSync = time.Now()

	return server, nil
}

// Timestamp returns the wire timestamp (milliseconds since epoch) to attach
// to a signed request. With auto sync disabled the offset is always zero.
func (c *serverClock) Timestamp() int64 {
	if !c.auto {
		return time.Now().UnixMilli()
	}

	c.mu.Lock()
	offset := c.offset
	c.mu.Unlock()

	return time.Now().Add(offset).UnixMilli()
}

// Offset returns the currently stored offset and whether it is trusted.
func (c *serverClock) Offset() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset, c.synced
}
