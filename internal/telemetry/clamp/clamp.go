// Package clamp quantizes integer measurements into a small set of
// representable values.
//
// Clamping bounds the cardinality of a key space: clamped durations are
// used as frequency-sketch keys and as percentile samples, both of which
// behave well only when the number of distinct values stays small.
//
// Every Clamper is idempotent (Clamp(Clamp(x)) == Clamp(x)) and monotonic
// non-decreasing in its input.
package clamp

import "errors"

// Clamper quantizes a value.
type Clamper interface {
	Clamp(value int64) int64
}

var (
	// ErrInvalidStep is returned for a non-positive base step.
	ErrInvalidStep = errors.New("clamp: base step must be positive")

	// ErrInvalidSegment is returned for a non-positive number of steps per segment.
	ErrInvalidSegment = errors.New("clamp: steps per segment must be positive")

	// ErrInvalidMax is returned when the maximum is not above zero.
	ErrInvalidMax = errors.New("clamp: maximum must be positive")

	// ErrInvalidDigits is returned for a significant digit count outside [1, 18].
	ErrInvalidDigits = errors.New("clamp: significant digits must be within [1, 18]")
)
