// Package percentile estimates latency percentiles.
//
// Two rank algorithms are provided over sorted samples. NearestRank always
// returns an existing sample. BoundaryInterpolated averages the two samples
// straddling a percentile boundary and is what Sink uses.
//
// Sink is the default Estimator: it clamps every report with the segmented
// microsecond clamp and keeps one counter per representable value, so its
// memory does not grow with the number of reports. HDRSink and DDSink are
// alternative backends built on HdrHistogram and DDSketch.
package percentile

import "math"

// rankEpsilon absorbs float error in p*n so that, for example, 0.07*100 is
// treated as rank 7 and not 8.
const rankEpsilon = 1e-9

// rank returns ceil(p*n) with p clamped to [0, 1].
func rank(p float64, n int) int {
	switch {
	case math.IsNaN(p) || p <= 0:
		return 0
	case p >= 1:
		return n
	}
	return int(math.Ceil(p*float64(n) - rankEpsilon))
}

// NearestRank returns the sample at 1-indexed rank ceil(p*n), with the rank
// clamped to [1, n]. sorted must be in increasing order. It returns 0 for an
// empty slice.
func NearestRank(sorted []int64, p float64) int64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	r := min(max(rank(p, n), 1), n)
	return sorted[r-1]
}

// BoundaryInterpolated returns the mean of the samples at 0-indexed
// positions r-1 and r, where r = ceil(p*n). A rank at or below zero yields
// the minimum and a rank at or above n yields the maximum. sorted must be in
// increasing order. It returns 0 for an empty slice.
func BoundaryInterpolated(sorted []int64, p float64) int64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	return interpolate(n, p, func(i int) int64 { return sorted[i] })
}

// interpolate applies the boundary-interpolated rule to n ordered samples
// read through at.
func interpolate(n int, p float64, at func(int) int64) int64 {
	r := rank(p, n)
	switch {
	case r <= 0:
		return at(0)
	case r >= n:
		return at(n - 1)
	}
	lo, hi := at(r-1), at(r)
	return lo + (hi-lo)/2
}
