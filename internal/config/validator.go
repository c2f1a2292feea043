package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/wesleyorama2/tally/internal/logging"
	"github.com/wesleyorama2/tally/internal/telemetry/percentile"
	"github.com/wesleyorama2/tally/internal/telemetry/sketch"
	"github.com/wesleyorama2/tally/pkg/jsonpath"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the semantic constraints the schema cannot express.
// Call it after ApplyDefaults.
//
// Returns nil if valid, or a *ValidationErrors listing every problem.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	tick := time.Duration(c.Clock.Tick)
	if tick <= 0 {
		errs.Add("clock.tick", "tick must be positive")
	}

	validateIntervals(c.Intervals, tick, errs)

	if c.Capacity != nil && *c.Capacity < 0 {
		errs.Add("capacity", "capacity cannot be negative")
	}

	validateSketch(&c.Sketch, errs)
	validatePercentiles(&c.Percentiles, errs)
	validateEvents(&c.Events, errs)
	validateSimulate(&c.Simulate, errs)

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs.Add("logging.level", err.Error())
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateIntervals(intervals []IntervalConfig, tick time.Duration, errs *ValidationErrors) {
	if len(intervals) == 0 {
		errs.Add("intervals", "at least one interval is required")
	}

	seen := make(map[string]bool)
	for i, iv := range intervals {
		prefix := fmt.Sprintf("intervals[%d]", i)

		if iv.Name == "" {
			errs.Add(prefix+".name", "name is required")
		} else if seen[iv.Name] {
			errs.Add(prefix+".name", fmt.Sprintf("duplicate interval name: %s", iv.Name))
		}
		seen[iv.Name] = true

		d := time.Duration(iv.Duration)
		switch {
		case d <= 0:
			errs.Add(prefix+".duration", "duration must be positive")
		case tick > 0 && d < tick:
			errs.Add(prefix+".duration", fmt.Sprintf("duration %s is shorter than the clock tick %s", d, tick))
		case tick > 0 && d%tick != 0:
			errs.Add(prefix+".duration", fmt.Sprintf("duration %s is not a multiple of the clock tick %s", d, tick))
		}
	}
}

func validateSketch(s *SketchConfig, errs *ValidationErrors) {
	if (s.Epsilon == 0) != (s.Delta == 0) {
		errs.Add("sketch", "epsilon and delta must be set together")
	}
	if s.Epsilon != 0 || s.Delta != 0 {
		if _, _, err := sketch.Dimensions(s.Epsilon, s.Delta); err != nil {
			errs.Add("sketch", err.Error())
		}
	}
	if s.Depth <= 0 {
		errs.Add("sketch.depth", "depth must be greater than 0")
	}
	if s.Width <= 0 {
		errs.Add("sketch.width", "width must be greater than 0")
	}
}

func validatePercentiles(p *PercentileConfig, errs *ValidationErrors) {
	valid := false
	for _, b := range percentile.Backends() {
		if p.Backend == b {
			valid = true
		}
	}
	if !valid {
		errs.Add("percentiles.backend", fmt.Sprintf("unknown backend: %s", p.Backend))
	}

	for i, q := range p.Quantiles {
		if q < 0 || q > 1 {
			errs.Add(fmt.Sprintf("percentiles.quantiles[%d]", i), fmt.Sprintf("quantile %g is outside [0, 1]", q))
		}
	}
}

func validateEvents(e *EventsConfig, errs *ValidationErrors) {
	for field, expr := range map[string]string{
		"timestamp": e.Fields.Timestamp,
		"feature":   e.Fields.Feature,
		"count":     e.Fields.Count,
		"duration":  e.Fields.Duration,
	} {
		if _, err := jsonpath.Compile(expr); err != nil {
			errs.Add("events.fields."+field, err.Error())
		}
	}
}

func validateSimulate(s *SimulateConfig, errs *ValidationErrors) {
	if s.Rate <= 0 {
		errs.Add("simulate.rate", "rate must be greater than 0")
	}
	if s.Burst < 1 {
		errs.Add("simulate.burst", "burst must be at least 1")
	}
	if s.Workers <= 0 {
		errs.Add("simulate.workers", "workers must be greater than 0")
	}
	if s.Duration < 0 {
		errs.Add("simulate.duration", "duration cannot be negative")
	}
	if len(s.Features) == 0 {
		errs.Add("simulate.features", "at least one feature is required")
	}
	if s.RotateEvery < 0 {
		errs.Add("simulate.rotateEvery", "rotateEvery cannot be negative")
	}
}
