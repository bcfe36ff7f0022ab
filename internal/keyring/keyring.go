// Package keyring manages a set of API credentials and rotates between them.
// It lets a client spread signed requests over multiple keys or fail over to
// a spare key when one starts erroring.
package keyring

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// APIKey is a single API credential tracked by the ring.
type APIKey struct {
	ID         string
	Key        string
	Secret     string
	Disabled   bool
	LastUsed   time.Time
	ErrorCount int
}

// RotationStrategy selects when the ring advances to the next key.
type RotationStrategy int

// Rotation strategies.
const (
	// RotationRoundRobin advances after every use.
	RotationRoundRobin RotationStrategy = iota
	// RotationOnError advances only when a request using the key fails.
	RotationOnError
)

// KeyRing holds the configured API keys and the rotation cursor.
type KeyRing struct {
	mu       sync.RWMutex
	keys     []*APIKey
	current  int
	strategy RotationStrategy
	logger   zerolog.Logger
}

// New creates a key ring over a copy of the given keys.
func New(keys []*APIKey, strategy RotationStrategy) *KeyRing {
	copied := make([]*APIKey, len(keys))
	for i, k := range keys {
		dup := *k
		copied[i] = &dup
	}
	return &KeyRing{
		keys:     copied,
		strategy: strategy,
		logger:   zerolog.Nop(),
	}
}

// SetLogger configures the logger used for rotation events.
func (r *KeyRing) SetLogger(logger zerolog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Current returns the key signed requests should use, or nil when every key
// is disabled or the ring is empty.
func (r *KeyRing) Current() *APIKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.keys {
		idx := (r.current + i) % len(r.keys)
		if !r.keys[idx].Disabled {
			return r.keys[idx]
		}
	}
	return nil
}

// MarkUsed stamps the key handed out by Current and, under round-robin
// rotation, advances the cursor past it. The outcome of the request is
// reported later through OnError or OnSuccess against the same key, so the
// cursor position at that point no longer matters.
func (r *KeyRing) MarkUsed(key *APIKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(key)
	if idx < 0 {
		return
	}
	key.LastUsed = time.Now()
	if r.strategy == RotationRoundRobin {
		r.advanceFrom(idx)
	}
}

// OnError records a failure against the key that served the request. Under
// on-error rotation the cursor moves past the failing key; a key that keeps
// failing is disabled after five consecutive errors.
func (r *KeyRing) OnError(key *APIKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(key)
	if idx < 0 {
		return
	}
	key.ErrorCount++
	if key.ErrorCount >= 5 {
		key.Disabled = true
		r.logger.Warn().Str("key_id", key.ID).Msg("api key disabled after repeated errors")
	}
	if r.strategy == RotationOnError || key.Disabled {
		r.advanceFrom(idx)
	}
}

// OnSuccess clears the error count of the key that served the request.
func (r *KeyRing) OnSuccess(key *APIKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(key) < 0 {
		return
	}
	key.ErrorCount = 0
}

// indexOf locates a key handed out by Current. Caller holds the lock.
func (r *KeyRing) indexOf(key *APIKey) int {
	for i, k := range r.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// advanceFrom moves the cursor to the next enabled key after the given
// index. Caller holds the lock.
func (r *KeyRing) advanceFrom(from int) {
	for i := 1; i <= len(r.keys); i++ {
		idx := (from + i) % len(r.keys)
		if !r.keys[idx].Disabled {
			r.current = idx
			return
		}
	}
}

// Enable re-enables the key with the given ID and clears its error count.
func (r *KeyRing) Enable(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range r.keys {
		if k.ID == id {
			k.Disabled = false
			k.ErrorCount = 0
			return
		}
	}
}

// Len returns the number of keys in the ring, including disabled ones.
func (r *KeyRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
