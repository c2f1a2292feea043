package usage

import (
	"sync/atomic"
	"time"
)

// Clock supplies monotonic timestamps in ticks. Every timestamp passed to a
// Tracker must use the same tick unit.
type Clock interface {
	Now() int64
}

// MonotonicClock counts ticks since it was created using the runtime's
// monotonic clock.
type MonotonicClock struct {
	start time.Time
	tick  time.Duration
}

// NewMonotonicClock returns a clock ticking every tick. A non-positive tick
// defaults to one millisecond.
func NewMonotonicClock(tick time.Duration) *MonotonicClock {
	if tick <= 0 {
		tick = time.Millisecond
	}
	return &MonotonicClock{start: time.Now(), tick: tick}
}

// Now returns the ticks elapsed since the clock was created.
func (c *MonotonicClock) Now() int64 {
	return int64(time.Since(c.start) / c.tick)
}

// Tick returns the tick duration.
func (c *MonotonicClock) Tick() time.Duration {
	return c.tick
}

// ManualClock is a Clock that only moves when told to. It is safe for
// concurrent use.
type ManualClock struct {
	now atomic.Int64
}

// Now returns the current tick.
func (c *ManualClock) Now() int64 {
	return c.now.Load()
}

// Set moves the clock to ts.
func (c *ManualClock) Set(ts int64) {
	c.now.Store(ts)
}

// Advance moves the clock forward by n ticks and returns the new time.
func (c *ManualClock) Advance(n int64) int64 {
	return c.now.Add(n)
}
