package usage

import "github.com/wesleyorama2/tally/internal/telemetry/interval"

// Snapshot is a point-in-time view of a Tracker. It is not linearized with
// concurrent writers.
type Snapshot struct {
	TakenAt       int64  `json:"takenAt" yaml:"takenAt"`
	Backend       string `json:"backend" yaml:"backend"`
	Events        int64  `json:"events" yaml:"events"`
	RecordedTotal int64  `json:"recordedTotal" yaml:"recordedTotal"`
	Dropped       int64  `json:"dropped" yaml:"dropped"`
	Rotations     int64  `json:"rotations" yaml:"rotations"`
	MinValue      int64  `json:"minValue" yaml:"minValue"`
	MaxValue      int64  `json:"maxValue" yaml:"maxValue"`

	Intervals []interval.Stats `json:"intervals" yaml:"intervals"`

	LatencyCount int64             `json:"latencyCount" yaml:"latencyCount"`
	Percentiles  []PercentileValue `json:"percentiles,omitempty" yaml:"percentiles,omitempty"`
	Durations    []DurationCount   `json:"durations,omitempty" yaml:"durations,omitempty"`

	Features         []FeatureEstimate `json:"features,omitempty" yaml:"features,omitempty"`
	SketchErrorBound int64             `json:"sketchErrorBound" yaml:"sketchErrorBound"`
}

// PercentileValue is one latency percentile.
type PercentileValue struct {
	Quantile     float64 `json:"quantile" yaml:"quantile"`
	Microseconds int64   `json:"microseconds" yaml:"microseconds"`
}

// FeatureEstimate is the approximate use count of one feature.
type FeatureEstimate struct {
	Name     string `json:"name" yaml:"name"`
	Estimate int64  `json:"estimate" yaml:"estimate"`
}

// DurationCount is the approximate number of events whose duration clamps
// to Microseconds.
type DurationCount struct {
	Microseconds int64 `json:"microseconds" yaml:"microseconds"`
	Estimate     int64 `json:"estimate" yaml:"estimate"`
}

// Feature returns the estimate for name and whether it is in the snapshot.
func (s Snapshot) Feature(name string) (int64, bool) {
	for _, f := range s.Features {
		if f.Name == name {
			return f.Estimate, true
		}
	}
	return 0, false
}

// Interval returns the stats for the named interval.
func (s Snapshot) Interval(name string) (interval.Stats, bool) {
	for _, st := range s.Intervals {
		if st.Name == name {
			return st, true
		}
	}
	return interval.Stats{}, false
}
