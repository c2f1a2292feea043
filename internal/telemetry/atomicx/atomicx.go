// Package atomicx provides lock-free read-modify-write helpers over
// atomic.Int64 that the standard library does not offer directly.
//
// Every helper is a compare-and-swap retry loop: it never blocks and never
// tears a read or write, but it may retry under contention.
package atomicx

import (
	"math"
	"sync/atomic"
)

// InterlockedMax raises shared to candidate if candidate is larger and
// returns the value shared holds after the call.
func InterlockedMax(shared *atomic.Int64, candidate int64) int64 {
	for {
		current := shared.Load()
		if candidate <= current {
			return current
		}
		if shared.CompareAndSwap(current, candidate) {
			return candidate
		}
	}
}

// InterlockedMin lowers shared to candidate if candidate is smaller and
// returns the value shared holds after the call.
func InterlockedMin(shared *atomic.Int64, candidate int64) int64 {
	for {
		current := shared.Load()
		if candidate >= current {
			return current
		}
		if shared.CompareAndSwap(current, candidate) {
			return candidate
		}
	}
}

// InterlockedAdd adds delta to shared and returns the new value.
//
// Unlike atomic.Int64.Add the result saturates instead of wrapping:
// it stays within [math.MinInt64+1, math.MaxInt64]. math.MinInt64 is
// never produced so callers may use it as a sentinel.
func InterlockedAdd(shared *atomic.Int64, delta int64) int64 {
	for {
		current := shared.Load()
		next := SaturatingAdd(current, delta)
		if shared.CompareAndSwap(current, next) {
			return next
		}
	}
}

// SaturatingAdd returns a+b clamped to [math.MinInt64+1, math.MaxInt64].
func SaturatingAdd(a, b int64) int64 {
	sum := a + b
	switch {
	case b > 0 && sum < a:
		return math.MaxInt64
	case b < 0 && sum > a:
		return math.MinInt64 + 1
	case sum == math.MinInt64:
		return math.MinInt64 + 1
	}
	return sum
}

// Extremum tracks the smallest and largest values observed by concurrent
// writers. Use NewExtremum; the zero value is not ready.
type Extremum struct {
	min   atomic.Int64
	max   atomic.Int64
	count atomic.Int64
}

// NewExtremum returns an empty Extremum.
func NewExtremum() *Extremum {
	e := &Extremum{}
	e.Reset()
	return e
}

// Observe folds v into the tracked range.
func (e *Extremum) Observe(v int64) {
	InterlockedMin(&e.min, v)
	InterlockedMax(&e.max, v)
	e.count.Add(1)
}

// Range returns the observed minimum and maximum. ok is false until at
// least one Observe has completed.
func (e *Extremum) Range() (lo, hi int64, ok bool) {
	if e.count.Load() == 0 {
		return 0, 0, false
	}
	return e.min.Load(), e.max.Load(), true
}

// Count returns the number of completed observations.
func (e *Extremum) Count() int64 {
	return e.count.Load()
}

// Reset forgets all observations. It is not linearized with concurrent
// Observe calls.
func (e *Extremum) Reset() {
	e.count.Store(0)
	e.min.Store(math.MaxInt64)
	e.max.Store(math.MinInt64)
}
