// Package usage records feature usage events and answers approximate
// questions about them.
//
// A Tracker ties the telemetry primitives together: a multi-interval
// aggregator for event rates, a count-min sketch of uses per feature, a
// count-min sketch of clamped durations and a percentile estimator for
// latency. Recording never blocks and never allocates per event beyond the
// first use of a feature name.
package usage

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/tally/internal/logging"
	"github.com/wesleyorama2/tally/internal/telemetry/clamp"
	"github.com/wesleyorama2/tally/internal/telemetry/interval"
	"github.com/wesleyorama2/tally/internal/telemetry/percentile"
	"github.com/wesleyorama2/tally/internal/telemetry/sketch"
)

// NoDuration marks an event without a duration measurement.
const NoDuration int64 = -1

// maxTrackedFeatures caps how many distinct feature names a Tracker
// remembers for snapshots. Counting is unaffected by the cap.
const maxTrackedFeatures = 4096

// Options configures a Tracker.
type Options struct {
	Intervals   []interval.NamedInterval
	Capacity    int64
	SketchDepth int
	SketchWidth int
	Backend     string
	Percentiles []float64

	// Seed drives the sketch hash functions. Zero picks a random seed.
	Seed uint64

	Clock  Clock
	Logger *slog.Logger
}

// DefaultOptions returns options with standard intervals over millisecond
// ticks, two buckets of slack, a 4x2048 sketch and the clamped backend.
func DefaultOptions() Options {
	return Options{
		Intervals:   interval.StandardIntervals(time.Millisecond),
		Capacity:    2,
		SketchDepth: 4,
		SketchWidth: 2048,
		Backend:     percentile.BackendClamped,
		Percentiles: []float64{0.5, 0.95, 0.99},
	}
}

// Tracker records usage events. It is safe for concurrent use.
type Tracker struct {
	opts   Options
	clock  Clock
	logger *slog.Logger

	rate      *interval.Aggregator
	features  *sketch.CountMin
	durations *sketch.CountMin
	latency   percentile.Estimator

	names     sync.Map // feature name -> struct{}
	nameCount atomic.Int64

	events    atomic.Int64
	rotations atomic.Int64
}

// New builds a Tracker. Empty Intervals and Percentiles, zero sketch
// dimensions and nil Clock and Logger fall back to DefaultOptions. Capacity
// is used as given; zero is a valid capacity.
func New(opts Options) (*Tracker, error) {
	def := DefaultOptions()
	if len(opts.Intervals) == 0 {
		opts.Intervals = def.Intervals
	}
	if opts.SketchDepth == 0 {
		opts.SketchDepth = def.SketchDepth
	}
	if opts.SketchWidth == 0 {
		opts.SketchWidth = def.SketchWidth
	}
	if opts.Percentiles == nil {
		opts.Percentiles = def.Percentiles
	}
	if opts.Clock == nil {
		opts.Clock = NewMonotonicClock(time.Millisecond)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("tracker")
	}

	rate, err := interval.New(opts.Intervals, opts.Capacity)
	if err != nil {
		return nil, fmt.Errorf("create rate aggregator: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))

	features, err := sketch.New(opts.SketchDepth, opts.SketchWidth, rng)
	if err != nil {
		return nil, fmt.Errorf("create feature sketch: %w", err)
	}
	durations, err := sketch.New(opts.SketchDepth, opts.SketchWidth, rng)
	if err != nil {
		return nil, fmt.Errorf("create duration sketch: %w", err)
	}

	latency, err := percentile.NewEstimator(opts.Backend)
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		opts:      opts,
		clock:     opts.Clock,
		logger:    opts.Logger,
		rate:      rate,
		features:  features,
		durations: durations,
		latency:   latency,
	}

	t.logger.Debug("tracker created",
		"intervals", len(opts.Intervals),
		"capacity", opts.Capacity,
		"sketch_depth", opts.SketchDepth,
		"sketch_width", opts.SketchWidth,
		"backend", backendName(opts.Backend))
	return t, nil
}

// FeatureKey maps a feature name to its sketch key.
func FeatureKey(feature string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(feature))
	return h.Sum32()
}

// RecordUsage records count uses of feature at the clock's current time.
// It reports false when the event was too late for every interval.
func (t *Tracker) RecordUsage(feature string, count int64) bool {
	return t.RecordAt(t.clock.Now(), feature, count, NoDuration)
}

// RecordDuration records one use of feature that took d.
func (t *Tracker) RecordDuration(feature string, d time.Duration) bool {
	return t.RecordAt(t.clock.Now(), feature, 1, d.Microseconds())
}

// RecordAt records count uses of feature at ts. A durationUs of NoDuration
// or below skips latency recording. The feature and latency views are
// updated even when the rate aggregator rejects ts as stale.
func (t *Tracker) RecordAt(ts int64, feature string, count, durationUs int64) bool {
	t.events.Add(1)
	ok := t.rate.Record(ts, count)

	if feature != "" {
		t.remember(feature)
		t.features.InterlockedAdd(FeatureKey(feature), count)
	}
	if durationUs > NoDuration {
		t.latency.ReportMicroseconds(durationUs)
		t.durations.InterlockedAdd(uint32(clamp.ClampMicroseconds(durationUs)), 1)
	}
	return ok
}

func (t *Tracker) remember(feature string) {
	if _, ok := t.names.Load(feature); ok {
		return
	}

	// reserve a slot before storing so the cap holds under concurrent
	// first uses
	for {
		n := t.nameCount.Load()
		if n >= maxTrackedFeatures {
			return
		}
		if t.nameCount.CompareAndSwap(n, n+1) {
			break
		}
	}
	if _, loaded := t.names.LoadOrStore(feature, struct{}{}); loaded {
		t.nameCount.Add(-1)
	}
}

// EstimateUsage returns the approximate number of uses of feature since the
// last rotation. It never undercounts.
func (t *Tracker) EstimateUsage(feature string) int64 {
	return t.features.Estimate(FeatureKey(feature))
}

// EstimateDurations returns the approximate number of events whose duration
// clamps to the same value as d.
func (t *Tracker) EstimateDurations(d time.Duration) int64 {
	return t.durations.Estimate(uint32(clamp.ClampMicroseconds(d.Microseconds())))
}

// Percentile returns the p-th latency percentile in microseconds.
func (t *Tracker) Percentile(p float64) int64 {
	return t.latency.GetPercentile(p)
}

// Options returns the options the Tracker was built with.
func (t *Tracker) Options() Options {
	return t.opts
}

// Snapshot reports the current state. Feature estimates are included for
// the named features, or for every remembered feature when none are named.
func (t *Tracker) Snapshot(features ...string) Snapshot {
	if len(features) == 0 {
		t.names.Range(func(k, _ any) bool {
			features = append(features, k.(string))
			return true
		})
		sort.Strings(features)
	}

	s := Snapshot{
		TakenAt:       t.clock.Now(),
		Backend:       backendName(t.opts.Backend),
		Events:        t.events.Load(),
		RecordedTotal: t.rate.RecordedTotal(),
		Dropped:       t.rate.Dropped(),
		Rotations:     t.rotations.Load(),
		Intervals:     t.rate.GetStats(),
		LatencyCount:  t.latency.Count(),
	}

	if lo, hi, ok := t.rate.Extremes(); ok {
		s.MinValue, s.MaxValue = lo, hi
	}

	for _, p := range t.opts.Percentiles {
		s.Percentiles = append(s.Percentiles, PercentileValue{
			Quantile:     p,
			Microseconds: t.latency.GetPercentile(p),
		})
	}

	for _, f := range features {
		s.Features = append(s.Features, FeatureEstimate{
			Name:     f,
			Estimate: t.EstimateUsage(f),
		})
	}

	if s.LatencyCount > 0 {
		for _, v := range clamp.Microseconds.PossibleValues() {
			if n := t.durations.Estimate(uint32(v)); n > 0 {
				s.Durations = append(s.Durations, DurationCount{Microseconds: v, Estimate: n})
			}
		}
	}

	s.SketchErrorBound = t.features.ErrorBound()
	return s
}

// Rotate takes a snapshot, then empties the sketches and the latency
// estimator and drains every interval's flushed buckets. Events recorded
// concurrently with Rotate may land on either side of it.
func (t *Tracker) Rotate() Snapshot {
	s := t.Snapshot()

	t.features.Reset()
	t.durations.Reset()
	t.latency.Reset()
	drained := t.rate.Dequeue()

	n := t.rotations.Add(1)
	buckets := 0
	for _, v := range drained {
		buckets += len(v)
	}
	t.logger.Info("rotated",
		"rotation", n,
		"events", s.Events,
		"dropped", s.Dropped,
		"drained_buckets", buckets)
	return s
}

func backendName(b string) string {
	if b == "" {
		return percentile.BackendClamped
	}
	return b
}
