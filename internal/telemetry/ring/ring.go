// Package ring provides a lock-free, time-bucketed accumulator.
//
// A Ring sums values into buckets of fixed duration. The newest bucket and
// up to capacity older buckets stay open so that writers racing on slightly
// different clock reads can still land late events. When a write moves the
// window forward, every bucket that falls out of it is flushed exactly once,
// in increasing bucket order, with zero for buckets that never saw a write.
// Flushed values wait in a queue until DequeueValues drains them.
//
// # Algorithm
//
// Let idx = floor(timestamp / interval) and max the newest bucket seen.
//
//   - idx < max-capacity: the write is stale and rejected.
//   - idx <= max: the value is added to bucket idx.
//   - idx > max: max advances to idx via compare-and-swap, then buckets in
//     [old lower bound, idx-capacity) are flushed.
//
// Flushing starts at the lowest bucket ever written, so no zeros are
// emitted for time before the first event. A write older than every bucket
// so far but still inside the window is accepted and moves that start back.
//
// # Thread Safety
//
// Record, DequeueValues and Pending are safe for concurrent use and take no
// locks on the steady-state path. Bucket sums are updated with compare-and-swap; a bucket is sealed
// atomically when flushed, and a writer that finds its bucket sealed
// re-checks the window, so an accepted write is never lost. A single
// goroutine at a time performs flushing; others that need it either leave
// the work to it or help once it is done.
package ring

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/wesleyorama2/tally/internal/telemetry/atomicx"
)

var (
	// ErrInvalidInterval is returned for a non-positive bucket duration.
	ErrInvalidInterval = errors.New("ring: interval duration must be positive")

	// ErrInvalidCapacity is returned for a negative capacity.
	ErrInvalidCapacity = errors.New("ring: capacity must not be negative")
)

const (
	// unset marks fields that have not been initialized by the first write.
	unset = math.MinInt64

	// sealed marks a bucket that has been flushed. atomicx.InterlockedAdd
	// never produces it, so it cannot collide with a real sum.
	sealed = math.MinInt64
)

// Ring is a fixed-lag circular buffer of time-indexed accumulators.
type Ring struct {
	interval int64
	capacity int64

	slots []atomic.Pointer[bucket]

	origin   atomic.Int64 // lowest bucket ever written
	maxSeen  atomic.Int64 // newest bucket index
	next     atomic.Int64 // lowest bucket index not yet flushed
	flushing atomic.Bool

	pending queue

	accepted atomic.Int64
	rejected atomic.Int64
}

type bucket struct {
	index int64
	sum   atomic.Int64
}

// New creates a Ring with buckets of interval time units each and capacity
// buckets of slack behind the newest one.
func New(interval, capacity int64) (*Ring, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval %d: %w", interval, ErrInvalidInterval)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrInvalidCapacity)
	}

	r := &Ring{
		interval: interval,
		capacity: capacity,
		slots:    make([]atomic.Pointer[bucket], capacity+1),
	}
	r.origin.Store(unset)
	r.maxSeen.Store(unset)
	r.next.Store(unset)
	return r, nil
}

// Interval returns the bucket duration.
func (r *Ring) Interval() int64 { return r.interval }

// Capacity returns the number of buckets kept open behind the newest one.
func (r *Ring) Capacity() int64 { return r.capacity }

// BucketIndex returns the bucket a timestamp falls in.
func (r *Ring) BucketIndex(timestamp int64) int64 {
	idx := timestamp / r.interval
	if timestamp%r.interval != 0 && timestamp < 0 {
		idx--
	}
	return idx
}

// Record adds value to the bucket containing timestamp. It returns false if
// the bucket has already left the window; the value is then dropped.
func (r *Ring) Record(timestamp, value int64) bool {
	if r.record(r.BucketIndex(timestamp), value) {
		r.accepted.Add(1)
		return true
	}
	r.rejected.Add(1)
	return false
}

func (r *Ring) record(idx, value int64) bool {
	for {
		m := r.maxSeen.Load()
		if m == unset {
			r.initialize(idx)
			continue
		}

		if idx < m-r.capacity {
			return false
		}

		if idx > m {
			if r.maxSeen.CompareAndSwap(m, idx) {
				r.flush()
			}
			continue
		}

		if idx < r.next.Load() && !r.extendBack(idx) {
			return false
		}

		switch r.add(idx, value) {
		case addDone:
			return true
		case addStale:
			return false
		case addRetry:
			// window moved or the slot is still held by an unflushed bucket
		}
	}
}

// initialize publishes the first bucket index. Exactly one writer wins the
// origin; everyone else waits for it to publish maxSeen.
func (r *Ring) initialize(idx int64) {
	if r.origin.CompareAndSwap(unset, idx) {
		r.next.Store(idx)
		r.maxSeen.Store(idx)
		return
	}
	for r.maxSeen.Load() == unset {
		runtime.Gosched()
	}
}

// extendBack moves the flush cursor down to idx, a bucket inside the window
// but older than any written so far. It reports false if the window has
// moved past idx in the meantime.
func (r *Ring) extendBack(idx int64) bool {
	for !r.flushing.CompareAndSwap(false, true) {
		runtime.Gosched()
	}

	ok := idx >= r.maxSeen.Load()-r.capacity
	if ok && idx < r.next.Load() {
		r.next.Store(idx)
		atomicx.InterlockedMin(&r.origin, idx)
	}
	r.flushing.Store(false)

	// a writer that advanced the window while the flag was held skipped
	// its flush
	if r.next.Load() < r.maxSeen.Load()-r.capacity {
		r.flush()
	}
	return ok
}

func (r *Ring) slot(idx int64) *atomic.Pointer[bucket] {
	n := int64(len(r.slots))
	return &r.slots[((idx%n)+n)%n]
}

type addResult int

const (
	addDone addResult = iota
	addStale
	addRetry
)

func (r *Ring) add(idx, value int64) addResult {
	slot := r.slot(idx)
	for {
		b := slot.Load()
		switch {
		case b != nil && b.index == idx:
			if addUnlessSealed(&b.sum, value) {
				return addDone
			}
			return addRetry

		case b != nil && b.index > idx:
			// slot reused by a newer bucket, idx is long gone
			return addStale

		case b != nil && b.sum.Load() != sealed:
			// an older bucket that left the window but is not flushed yet
			r.flush()
			runtime.Gosched()
			return addRetry
		}

		fresh := &bucket{index: idx}
		if slot.CompareAndSwap(b, fresh) {
			if addUnlessSealed(&fresh.sum, value) {
				return addDone
			}
			return addRetry
		}
	}
}

// addUnlessSealed adds value to sum unless the bucket has been sealed.
func addUnlessSealed(sum *atomic.Int64, value int64) bool {
	for {
		cur := sum.Load()
		if cur == sealed {
			return false
		}
		if sum.CompareAndSwap(cur, atomicx.SaturatingAdd(cur, value)) {
			return true
		}
	}
}

// flush seals and enqueues every bucket that has left the window. Only one
// goroutine flushes at a time; a caller that finds flushing in progress
// returns immediately, and the active flusher re-checks for work that
// arrived while it held the flag.
func (r *Ring) flush() {
	for {
		if !r.flushing.CompareAndSwap(false, true) {
			return
		}

		target := r.maxSeen.Load() - r.capacity
		c := r.next.Load()
		var batch []int64
		for ; c < target; c++ {
			batch = append(batch, r.seal(c))
		}
		r.next.Store(c)
		r.pending.push(batch)

		r.flushing.Store(false)

		if r.next.Load() >= r.maxSeen.Load()-r.capacity {
			return
		}
	}
}

// seal closes bucket idx and returns its final sum. A bucket that was never
// written is replaced by a sealed placeholder so a late writer cannot
// create it afterwards.
func (r *Ring) seal(idx int64) int64 {
	slot := r.slot(idx)
	for {
		b := slot.Load()
		switch {
		case b != nil && b.index == idx:
			v := b.sum.Swap(sealed)
			if v == sealed {
				return 0
			}
			return v

		case b != nil && b.index > idx:
			return 0
		}

		tomb := &bucket{index: idx}
		tomb.sum.Store(sealed)
		if slot.CompareAndSwap(b, tomb) {
			return 0
		}
	}
}

// DequeueValues flushes any buckets that have left the window and returns
// every flushed value not yet dequeued, oldest first.
func (r *Ring) DequeueValues() []int64 {
	if r.maxSeen.Load() != unset {
		r.flush()
	}
	return r.pending.drain()
}

// Pending returns the flushed values not yet dequeued without removing them.
func (r *Ring) Pending() []int64 {
	return r.pending.snapshot()
}

// Stats holds ring counters.
type Stats struct {
	Accepted      int64
	Rejected      int64
	MaxBucketSeen int64
	Initialized   bool
}

// Stats returns a best-effort view of the ring counters.
func (r *Ring) Stats() Stats {
	m := r.maxSeen.Load()
	return Stats{
		Accepted:      r.accepted.Load(),
		Rejected:      r.rejected.Load(),
		MaxBucketSeen: m,
		Initialized:   m != unset,
	}
}
