package config

import (
	"log/slog"
	"time"

	"github.com/wesleyorama2/tally/internal/events"
	"github.com/wesleyorama2/tally/internal/telemetry/interval"
	"github.com/wesleyorama2/tally/internal/telemetry/percentile"
	"github.com/wesleyorama2/tally/internal/telemetry/sketch"
	"github.com/wesleyorama2/tally/internal/usage"
)

// Default values.
const (
	DefaultTick        = time.Millisecond
	DefaultCapacity    = int64(2)
	DefaultSketchDepth = 4
	DefaultSketchWidth = 2048
	DefaultRate        = 1000.0
	DefaultWorkers     = 4
	DefaultDuration    = 10 * time.Second
	DefaultMaxLatency  = 50 * time.Millisecond
)

// DefaultQuantiles are reported when none are configured.
var DefaultQuantiles = []float64{0.5, 0.95, 0.99}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Clock.Tick == 0 {
		c.Clock.Tick = Duration(DefaultTick)
	}

	if len(c.Intervals) == 0 {
		c.Intervals = []IntervalConfig{
			{Name: "1s", Unit: string(interval.UnitSecond), Duration: Duration(time.Second)},
			{Name: "1m", Unit: string(interval.UnitMinute), Duration: Duration(time.Minute)},
			{Name: "15m", Unit: string(interval.UnitQuarterHour), Duration: Duration(15 * time.Minute)},
			{Name: "1h", Unit: string(interval.UnitHour), Duration: Duration(time.Hour)},
		}
	}
	for i := range c.Intervals {
		if c.Intervals[i].Unit == "" {
			c.Intervals[i].Unit = string(interval.UnitCustom)
		}
	}

	if c.Capacity == nil {
		capacity := DefaultCapacity
		c.Capacity = &capacity
	}

	if c.Sketch.Epsilon > 0 && c.Sketch.Delta > 0 {
		if depth, width, err := sketch.Dimensions(c.Sketch.Epsilon, c.Sketch.Delta); err == nil {
			c.Sketch.Depth, c.Sketch.Width = depth, width
		}
	}
	if c.Sketch.Depth == 0 {
		c.Sketch.Depth = DefaultSketchDepth
	}
	if c.Sketch.Width == 0 {
		c.Sketch.Width = DefaultSketchWidth
	}

	if c.Percentiles.Backend == "" {
		c.Percentiles.Backend = percentile.BackendClamped
	}
	if len(c.Percentiles.Quantiles) == 0 {
		c.Percentiles.Quantiles = append([]float64(nil), DefaultQuantiles...)
	}

	c.Events.Fields = c.Events.Fields.WithDefaults()

	if c.Simulate.Rate == 0 {
		c.Simulate.Rate = DefaultRate
	}
	if c.Simulate.Burst == 0 {
		c.Simulate.Burst = 1
	}
	if c.Simulate.Workers == 0 {
		c.Simulate.Workers = DefaultWorkers
	}
	if c.Simulate.Duration == 0 {
		c.Simulate.Duration = Duration(DefaultDuration)
	}
	if len(c.Simulate.Features) == 0 {
		c.Simulate.Features = []string{"export", "import", "render", "search"}
	}
	if c.Simulate.MaxLatency == 0 {
		c.Simulate.MaxLatency = Duration(DefaultMaxLatency)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// TickDuration returns the configured tick.
func (c *Config) TickDuration() time.Duration {
	return c.Clock.Tick.GetDuration(DefaultTick)
}

// NamedIntervals converts the interval configuration to tick-based
// intervals.
func (c *Config) NamedIntervals() []interval.NamedInterval {
	tick := c.TickDuration()
	out := make([]interval.NamedInterval, len(c.Intervals))
	for i, iv := range c.Intervals {
		out[i] = interval.NamedInterval{
			Unit:           interval.Unit(iv.Unit),
			Name:           iv.Name,
			BucketDuration: int64(time.Duration(iv.Duration) / tick),
		}
	}
	return out
}

// TrackerOptions builds usage.Tracker options from the configuration.
// clock and logger may be nil.
func (c *Config) TrackerOptions(clock usage.Clock, logger *slog.Logger) usage.Options {
	capacity := DefaultCapacity
	if c.Capacity != nil {
		capacity = *c.Capacity
	}
	return usage.Options{
		Intervals:   c.NamedIntervals(),
		Capacity:    capacity,
		SketchDepth: c.Sketch.Depth,
		SketchWidth: c.Sketch.Width,
		Backend:     c.Percentiles.Backend,
		Percentiles: c.Percentiles.Quantiles,
		Seed:        c.Sketch.Seed,
		Clock:       clock,
		Logger:      logger,
	}
}

// FieldMap returns the event field paths.
func (c *Config) FieldMap() events.FieldMap {
	return c.Events.Fields.WithDefaults()
}
