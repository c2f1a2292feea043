package clamp

import (
	"fmt"
	"math"
	"sort"
)

// Segmented rounds values up to a step that doubles at every segment
// boundary, giving fine resolution for small magnitudes and coarse
// resolution for large ones.
//
// Segment k covers (lower_k, upper_k] with step baseStep<<k and holds
// stepsPerSegment steps; segment 0 additionally holds zero. Values at or
// above max clamp to max, values at or below zero clamp to zero.
type Segmented struct {
	baseStep        int64
	stepsPerSegment int64
	max             int64

	lowers []int64
	uppers []int64
	steps  []int64

	values []int64
	counts []int
}

// Microseconds is the default duration clamp: 100µs resolution below
// 1.6ms, doubling per segment, capped at 600 seconds.
var Microseconds = MustSegmented(100, 16, 600*1000*1000)

// ClampMicroseconds clamps a duration expressed in microseconds with the
// Microseconds clamp.
func ClampMicroseconds(us int64) int64 {
	return Microseconds.Clamp(us)
}

// NewSegmented builds a segmented clamp.
func NewSegmented(baseStep, stepsPerSegment, max int64) (*Segmented, error) {
	if baseStep <= 0 {
		return nil, fmt.Errorf("base step %d: %w", baseStep, ErrInvalidStep)
	}
	if stepsPerSegment <= 0 {
		return nil, fmt.Errorf("steps per segment %d: %w", stepsPerSegment, ErrInvalidSegment)
	}
	if max <= 0 {
		return nil, fmt.Errorf("maximum %d: %w", max, ErrInvalidMax)
	}

	s := &Segmented{
		baseStep:        baseStep,
		stepsPerSegment: stepsPerSegment,
		max:             max,
	}
	s.buildSegments()
	s.buildValues()
	return s, nil
}

// MustSegmented is like NewSegmented but panics on invalid parameters.
func MustSegmented(baseStep, stepsPerSegment, max int64) *Segmented {
	s, err := NewSegmented(baseStep, stepsPerSegment, max)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Segmented) buildSegments() {
	lower := int64(0)
	step := s.baseStep
	for {
		upper := int64(math.MaxInt64)
		if step <= (math.MaxInt64-lower)/s.stepsPerSegment {
			upper = lower + step*s.stepsPerSegment
		}

		s.lowers = append(s.lowers, lower)
		s.uppers = append(s.uppers, upper)
		s.steps = append(s.steps, step)

		if upper >= s.max || step > math.MaxInt64/2 {
			return
		}
		lower = upper
		step *= 2
	}
}

func (s *Segmented) buildValues() {
	s.values = []int64{0}
	s.counts = make([]int, len(s.steps))
	s.counts[0] = 1

	for k := range s.steps {
		for j := int64(1); j <= s.stepsPerSegment; j++ {
			v := s.lowers[k] + j*s.steps[k]
			if v >= s.max || v <= s.lowers[k] {
				s.values = append(s.values, s.max)
				s.counts[k]++
				return
			}
			s.values = append(s.values, v)
			s.counts[k]++
		}
	}
	if s.values[len(s.values)-1] != s.max {
		s.values = append(s.values, s.max)
		s.counts[len(s.counts)-1]++
	}
}

// Clamp rounds value up to the next representable value.
func (s *Segmented) Clamp(value int64) int64 {
	if value <= 0 {
		return 0
	}
	if value >= s.max {
		return s.max
	}

	k := sort.Search(len(s.uppers), func(i int) bool { return value <= s.uppers[i] })
	lower, step := s.lowers[k], s.steps[k]

	n := (value - lower + step - 1) / step
	out := lower + n*step
	if out > s.max || out < lower {
		return s.max
	}
	return out
}

// Max returns the largest representable value.
func (s *Segmented) Max() int64 {
	return s.max
}

// PossibleValues returns every value Clamp can produce, in increasing order.
func (s *Segmented) PossibleValues() []int64 {
	out := make([]int64, len(s.values))
	copy(out, s.values)
	return out
}

// SegmentsPossibleValuesCount returns how many representable values fall in
// each segment. The counts sum to len(PossibleValues()).
func (s *Segmented) SegmentsPossibleValuesCount() []int {
	out := make([]int, len(s.counts))
	copy(out, s.counts)
	return out
}

// IndexOf returns the position of a clamped value within PossibleValues.
func (s *Segmented) IndexOf(clamped int64) (int, bool) {
	i := sort.Search(len(s.values), func(i int) bool { return s.values[i] >= clamped })
	if i < len(s.values) && s.values[i] == clamped {
		return i, true
	}
	return 0, false
}

// Len returns the number of representable values.
func (s *Segmented) Len() int {
	return len(s.values)
}

// ValueAt returns the i-th representable value.
func (s *Segmented) ValueAt(i int) int64 {
	return s.values[i]
}
