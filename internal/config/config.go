// Package config loads and validates tally configuration files.
//
// Example YAML:
//
//	clock:
//	  tick: 1ms
//	intervals:
//	  - name: 1s
//	    unit: second
//	    duration: 1s
//	  - name: 1m
//	    unit: minute
//	    duration: 1m
//	capacity: 2
//	sketch:
//	  depth: 4
//	  width: 2048
//	percentiles:
//	  backend: clamped
//	  quantiles: [0.5, 0.95, 0.99]
//	simulate:
//	  rate: 500
//	  workers: 4
//	  duration: 10s
//	  features: [export, import]
package config

import (
	"time"

	"github.com/wesleyorama2/tally/internal/events"
)

// Config is the root configuration.
type Config struct {
	// Clock sets the tick unit of every timestamp.
	Clock ClockConfig `json:"clock,omitempty" yaml:"clock,omitempty"`

	// Intervals are the rate aggregation granularities.
	Intervals []IntervalConfig `json:"intervals,omitempty" yaml:"intervals,omitempty"`

	// Capacity is how many buckets behind the newest stay open for late
	// events. Nil means the default.
	Capacity *int64 `json:"capacity,omitempty" yaml:"capacity,omitempty"`

	Sketch      SketchConfig     `json:"sketch,omitempty" yaml:"sketch,omitempty"`
	Percentiles PercentileConfig `json:"percentiles,omitempty" yaml:"percentiles,omitempty"`
	Events      EventsConfig     `json:"events,omitempty" yaml:"events,omitempty"`
	Simulate    SimulateConfig   `json:"simulate,omitempty" yaml:"simulate,omitempty"`
	Logging     LoggingConfig    `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// ClockConfig configures timestamps.
type ClockConfig struct {
	Tick Duration `json:"tick,omitempty" yaml:"tick,omitempty"`
}

// IntervalConfig is one aggregation granularity.
type IntervalConfig struct {
	Name     string   `json:"name" yaml:"name"`
	Unit     string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Duration Duration `json:"duration" yaml:"duration"`
}

// SketchConfig sizes the count-min sketches. When Epsilon and Delta are
// both set they take precedence over Depth and Width.
type SketchConfig struct {
	Depth   int     `json:"depth,omitempty" yaml:"depth,omitempty"`
	Width   int     `json:"width,omitempty" yaml:"width,omitempty"`
	Epsilon float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
	Delta   float64 `json:"delta,omitempty" yaml:"delta,omitempty"`

	// Seed makes hashing reproducible. Zero picks a random seed.
	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// PercentileConfig selects the latency estimator.
type PercentileConfig struct {
	// Backend is one of clamped, hdr or ddsketch.
	Backend   string    `json:"backend,omitempty" yaml:"backend,omitempty"`
	Quantiles []float64 `json:"quantiles,omitempty" yaml:"quantiles,omitempty"`
}

// EventsConfig controls NDJSON replay.
type EventsConfig struct {
	Fields events.FieldMap `json:"fields,omitempty" yaml:"fields,omitempty"`

	// SkipMalformed logs and skips bad lines instead of failing.
	SkipMalformed bool `json:"skipMalformed,omitempty" yaml:"skipMalformed,omitempty"`
}

// SimulateConfig drives synthetic load.
type SimulateConfig struct {
	// Rate is the total events per second across all workers.
	Rate     float64  `json:"rate,omitempty" yaml:"rate,omitempty"`
	Burst    float64  `json:"burst,omitempty" yaml:"burst,omitempty"`
	Workers  int      `json:"workers,omitempty" yaml:"workers,omitempty"`
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Features []string `json:"features,omitempty" yaml:"features,omitempty"`

	// MaxLatency bounds the synthetic durations attached to events.
	MaxLatency Duration `json:"maxLatency,omitempty" yaml:"maxLatency,omitempty"`

	// RotateEvery rotates the tracker periodically; zero disables it.
	RotateEvery Duration `json:"rotateEvery,omitempty" yaml:"rotateEvery,omitempty"`

	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	JSON  bool   `json:"json,omitempty" yaml:"json,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if zero.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return d.set(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.set(s)
}

func (d *Duration) set(s string) error {
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}
