package clamp

import (
	"fmt"
	"math"
)

// pow10 holds 10^0 through 10^18, every power of ten representable in int64.
var pow10 = func() [19]int64 {
	var p [19]int64
	p[0] = 1
	for i := 1; i < len(p); i++ {
		p[i] = p[i-1] * 10
	}
	return p
}()

// SignificantDigits rounds values to a fixed number of significant
// decimal digits.
type SignificantDigits struct {
	digits int
}

// NewSignificantDigits returns a clamp keeping digits significant digits.
func NewSignificantDigits(digits int) (*SignificantDigits, error) {
	if digits < 1 || digits > 18 {
		return nil, fmt.Errorf("%d digits: %w", digits, ErrInvalidDigits)
	}
	return &SignificantDigits{digits: digits}, nil
}

// Digits returns the configured number of significant digits.
func (s *SignificantDigits) Digits() int {
	return s.digits
}

// Clamp rounds value to the configured number of significant digits.
func (s *SignificantDigits) Clamp(value int64) int64 {
	return RoundSignificant(value, s.digits)
}

// RoundSignificant rounds value to the nearest number with at most digits
// leading non-zero decimal digits, rounding half away from zero. Values
// with no more than digits digits are returned unchanged. Results that
// would overflow int64 are truncated instead of rounded.
//
// digits outside [1, 18] are clamped into that range.
func RoundSignificant(value int64, digits int) int64 {
	digits = min(max(digits, 1), 18)

	if value < 0 {
		if value == math.MinInt64 {
			value++
		}
		return -RoundSignificant(-value, digits)
	}

	n := decimalDigits(value)
	if n <= digits {
		return value
	}

	unit := pow10[n-digits]
	q, r := value/unit, value%unit
	if r >= unit-r && q < math.MaxInt64/unit {
		q++
	}
	return q * unit
}

// decimalDigits returns the number of decimal digits in a non-negative v.
func decimalDigits(v int64) int {
	n := 1
	for n < len(pow10) && v >= pow10[n] {
		n++
	}
	return n
}
