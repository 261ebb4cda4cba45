package sched

import (
	"sync/atomic"
	"time"
)

// Clock is the scheduler's time source. Implementations must be safe for
// concurrent reads: the scheduler reads from its owning goroutine while a
// test controller may mutate a manual clock from another.
//
// Only relative ordering of deadlines matters to the scheduler; the epoch
// is arbitrary.
type Clock interface {
	// Now returns monotonic milliseconds since the clock's epoch.
	Now() uint64
}

// SystemClock reads real elapsed time since process start.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a clock whose epoch is the moment of construction.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns elapsed monotonic milliseconds. time.Since uses the runtime's
// monotonic reading, so the result never decreases.
func (c *SystemClock) Now() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// ManualClock is a settable clock for deterministic runs. All methods are
// safe under concurrent access: scripted runs advance it from a controlling
// goroutine while the host loop reads it.
type ManualClock struct {
	now atomic.Uint64
}

// NewManualClock creates a manual clock seeded at the given time.
func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

// Now returns the current manual time.
func (c *ManualClock) Now() uint64 {
	return c.now.Load()
}

// Advance moves the clock forward by delta milliseconds, saturating at the
// maximum representable value.
func (c *ManualClock) Advance(delta uint64) {
	for {
		cur := c.now.Load()
		next := cur + delta
		if next < cur { // overflow
			next = ^uint64(0)
		}
		if c.now.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Set moves the clock to an absolute value.
func (c *ManualClock) Set(v uint64) {
	c.now.Store(v)
}
