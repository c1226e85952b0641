// Package testutil holds deterministic stand-ins for the clock and ID
// sources the store uses, so tests can assert exact timestamps and IDs.
package testutil

import (
	"sync"
	"time"
)

// DefaultBase is the first instant a DeterministicClock reports when no
// base is given.
var DefaultBase = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock provides a thread-safe wall clock for tests that
// advances by a fixed step on every read.
//
// Pass clock.Now to store.WithClock. The first call to Now returns the
// base time; each later call returns the previous value plus step.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	seq  int64
}

// NewDeterministicClock creates a clock starting at base and advancing by
// one second per call. A zero base uses DefaultBase.
func NewDeterministicClock(base time.Time) *DeterministicClock {
	if base.IsZero() {
		base = DefaultBase
	}
	return &DeterministicClock{base: base.UTC(), step: time.Second}
}

// WithStep changes how far the clock advances per call.
func (c *DeterministicClock) WithStep(step time.Duration) *DeterministicClock {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = step
	return c
}

// Now returns the next instant.
//
// Monotonic: never decreases for a non-negative step.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.seq) * c.step)
	c.seq++
	return t
}

// Calls returns how many times Now has been called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to its base.
//
// Used for test reuse. After Reset(), the next call to Now() returns the
// base time again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
