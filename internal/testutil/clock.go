package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant a SteppingClock starts from.
var Epoch = time.Date(2018, 2, 1, 12, 0, 0, 0, time.UTC)

// SteppingClock is a deterministic clock for tests. Each call to Now
// returns the current instant and then advances it by Step.
//
// Unlike engine.FixedClock, SteppingClock can tell consecutive soft
// deletes apart and can be reset for test reuse.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SteppingClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
}

// NewSteppingClock creates a clock starting at Epoch that advances one
// second per call.
func NewSteppingClock() *SteppingClock {
	return NewSteppingClockAt(Epoch, time.Second)
}

// NewSteppingClockAt creates a clock starting at start that advances by
// step per call. A zero step freezes the clock.
func NewSteppingClockAt(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{start: start, now: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the instant the next call to Now will return.
func (c *SteppingClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
