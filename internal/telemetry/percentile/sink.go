package percentile

import (
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/tally/internal/telemetry/clamp"
)

// Sink collects clamped microsecond measurements and answers
// boundary-interpolated percentiles over them.
//
// Instead of retaining every sample, Sink counts how many times each
// representable clamped value was reported. The sorted sample sequence is
// implied by the counts, which keeps memory fixed at one counter per
// possible value. Reports are lock-free; reads are best-effort snapshots.
type Sink struct {
	clamp  *clamp.Segmented
	counts atomic.Pointer[[]atomic.Int64]
}

// NewSink returns a Sink using clamp.Microseconds.
func NewSink() *Sink {
	return NewSinkWithClamp(clamp.Microseconds)
}

// NewSinkWithClamp returns a Sink that quantizes with c.
func NewSinkWithClamp(c *clamp.Segmented) *Sink {
	s := &Sink{clamp: c}
	s.counts.Store(s.newCounts())
	return s
}

func (s *Sink) newCounts() *[]atomic.Int64 {
	c := make([]atomic.Int64, s.clamp.Len())
	return &c
}

// ReportMicroseconds clamps us and records it.
func (s *Sink) ReportMicroseconds(us int64) {
	i, ok := s.clamp.IndexOf(s.clamp.Clamp(us))
	if !ok {
		return
	}
	(*s.counts.Load())[i].Add(1)
}

// ReportDuration records d in microseconds.
func (s *Sink) ReportDuration(d time.Duration) {
	s.ReportMicroseconds(d.Microseconds())
}

// Count returns the number of reports since the last Reset.
func (s *Sink) Count() int64 {
	var n int64
	for _, c := range s.snapshot() {
		n += c
	}
	return n
}

// GetPercentile returns the boundary-interpolated p-th percentile, with p in
// [0, 1]. It returns 0 when nothing has been reported.
func (s *Sink) GetPercentile(p float64) int64 {
	counts := s.snapshot()

	var n int64
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return 0
	}

	return interpolate(int(n), p, func(pos int) int64 {
		return s.valueAtPosition(counts, int64(pos))
	})
}

// Values materializes the sorted clamped samples.
func (s *Sink) Values() []int64 {
	counts := s.snapshot()

	var out []int64
	for i, c := range counts {
		v := s.clamp.ValueAt(i)
		for ; c > 0; c-- {
			out = append(out, v)
		}
	}
	return out
}

// Reset discards every report.
func (s *Sink) Reset() {
	s.counts.Store(s.newCounts())
}

func (s *Sink) snapshot() []int64 {
	live := *s.counts.Load()
	out := make([]int64, len(live))
	for i := range live {
		out[i] = live[i].Load()
	}
	return out
}

// valueAtPosition returns the value at 0-indexed position pos of the sorted
// sequence described by counts.
func (s *Sink) valueAtPosition(counts []int64, pos int64) int64 {
	for i, c := range counts {
		if pos < c {
			return s.clamp.ValueAt(i)
		}
		pos -= c
	}
	return s.clamp.Max()
}
