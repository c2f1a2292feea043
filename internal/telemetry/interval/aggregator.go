// Package interval aggregates timestamped values at several time
// granularities at once.
//
// An Aggregator owns one ring.Ring per NamedInterval. Every Record fans out
// to all rings; GetStats rolls up the closed buckets each ring is holding.
package interval

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/tally/internal/telemetry/atomicx"
	"github.com/wesleyorama2/tally/internal/telemetry/ring"
)

// ErrNoIntervals is returned when an Aggregator is built without intervals.
var ErrNoIntervals = errors.New("interval: at least one interval is required")

// Unit names the granularity of a NamedInterval.
type Unit string

const (
	UnitSecond      Unit = "second"
	UnitMinute      Unit = "minute"
	UnitQuarterHour Unit = "quarter-hour"
	UnitHour        Unit = "hour"
	UnitCustom      Unit = "custom"
)

// NamedInterval configures one granularity. BucketDuration is expressed in
// the same tick unit as the timestamps passed to Record.
type NamedInterval struct {
	Unit           Unit
	Name           string
	BucketDuration int64
}

// StandardIntervals returns second, minute, 15-minute and hour intervals
// for timestamps counted in ticks of the given duration.
func StandardIntervals(tick time.Duration) []NamedInterval {
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticks := func(d time.Duration) int64 {
		n := int64(d / tick)
		if n < 1 {
			n = 1
		}
		return n
	}
	return []NamedInterval{
		{Unit: UnitSecond, Name: "1s", BucketDuration: ticks(time.Second)},
		{Unit: UnitMinute, Name: "1m", BucketDuration: ticks(time.Minute)},
		{Unit: UnitQuarterHour, Name: "15m", BucketDuration: ticks(15 * time.Minute)},
		{Unit: UnitHour, Name: "1h", BucketDuration: ticks(time.Hour)},
	}
}

// Stats is the rollup of one interval's buffered buckets.
type Stats struct {
	Name    string  `json:"name" yaml:"name"`
	Unit    Unit    `json:"unit" yaml:"unit"`
	Min     int64   `json:"min" yaml:"min"`
	Max     int64   `json:"max" yaml:"max"`
	Average float64 `json:"average" yaml:"average"`
	Buckets int     `json:"buckets" yaml:"buckets"`
}

type tracked struct {
	interval NamedInterval
	ring     *ring.Ring
}

// Aggregator records values into one ring per configured interval.
//
// Aggregator is safe for concurrent use and takes no locks.
type Aggregator struct {
	rings []tracked

	total    atomic.Int64
	dropped  atomic.Int64
	extremes *atomicx.Extremum
}

// New creates an Aggregator. capacity is the number of late buckets each
// ring keeps open.
func New(intervals []NamedInterval, capacity int64) (*Aggregator, error) {
	if len(intervals) == 0 {
		return nil, ErrNoIntervals
	}

	seen := make(map[string]bool, len(intervals))
	a := &Aggregator{extremes: atomicx.NewExtremum()}
	for _, iv := range intervals {
		if seen[iv.Name] {
			return nil, fmt.Errorf("interval: duplicate interval name %q", iv.Name)
		}
		seen[iv.Name] = true

		r, err := ring.New(iv.BucketDuration, capacity)
		if err != nil {
			return nil, fmt.Errorf("interval %q: %w", iv.Name, err)
		}
		a.rings = append(a.rings, tracked{interval: iv, ring: r})
	}
	return a, nil
}

// Record adds value at timestamp to every interval. It reports whether at
// least one interval accepted the write; a write every interval rejected
// as stale is counted as dropped.
func (a *Aggregator) Record(timestamp, value int64) bool {
	atomicx.InterlockedAdd(&a.total, value)
	a.extremes.Observe(value)

	ok := false
	for _, t := range a.rings {
		if t.ring.Record(timestamp, value) {
			ok = true
		}
	}
	if !ok {
		a.dropped.Add(1)
	}
	return ok
}

// RecordedTotal returns the sum of every value passed to Record, whether or
// not any interval accepted it.
func (a *Aggregator) RecordedTotal() int64 {
	return a.total.Load()
}

// Dropped returns the number of Record calls rejected by every interval.
func (a *Aggregator) Dropped() int64 {
	return a.dropped.Load()
}

// Extremes returns the smallest and largest value ever recorded.
func (a *Aggregator) Extremes() (lo, hi int64, ok bool) {
	return a.extremes.Range()
}

// Intervals returns the configured intervals in order.
func (a *Aggregator) Intervals() []NamedInterval {
	out := make([]NamedInterval, len(a.rings))
	for i, t := range a.rings {
		out[i] = t.interval
	}
	return out
}

// GetStats rolls up, per interval, the buckets that have left the window
// but have not been dequeued. Zero-filled buckets count like any other.
func (a *Aggregator) GetStats() []Stats {
	out := make([]Stats, len(a.rings))
	for i, t := range a.rings {
		out[i] = rollup(t.interval, t.ring.Pending())
	}
	return out
}

// Dequeue drains every interval's flushed buckets, keyed by interval name.
func (a *Aggregator) Dequeue() map[string][]int64 {
	out := make(map[string][]int64, len(a.rings))
	for _, t := range a.rings {
		out[t.interval.Name] = t.ring.DequeueValues()
	}
	return out
}

// RingStats returns the counters of every interval's ring, keyed by name.
func (a *Aggregator) RingStats() map[string]ring.Stats {
	out := make(map[string]ring.Stats, len(a.rings))
	for _, t := range a.rings {
		out[t.interval.Name] = t.ring.Stats()
	}
	return out
}

func rollup(iv NamedInterval, values []int64) Stats {
	s := Stats{Name: iv.Name, Unit: iv.Unit, Buckets: len(values)}
	if len(values) == 0 {
		return s
	}

	s.Min, s.Max = values[0], values[0]
	var sum float64
	for _, v := range values {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		sum += float64(v)
	}
	s.Average = sum / float64(len(values))
	return s
}
