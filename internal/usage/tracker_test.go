package usage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/tally/internal/logging"
	"github.com/wesleyorama2/tally/internal/telemetry/interval"
	"github.com/wesleyorama2/tally/internal/telemetry/percentile"
	"github.com/wesleyorama2/tally/internal/telemetry/ring"
)

func newTestTracker(t *testing.T, clock Clock) *Tracker {
	t.Helper()
	tr, err := New(Options{
		Intervals: []interval.NamedInterval{
			{Unit: interval.UnitSecond, Name: "1s", BucketDuration: 1000},
			{Unit: interval.UnitMinute, Name: "1m", BucketDuration: 60000},
		},
		Capacity: 1,
		Seed:     42,
		Clock:    clock,
		Logger:   logging.Discard(),
	})
	require.NoError(t, err)
	return tr
}

func TestNew_Defaults(t *testing.T) {
	tr, err := New(Options{Logger: logging.Discard(), Seed: 1})
	require.NoError(t, err)

	opts := tr.Options()
	assert.Len(t, opts.Intervals, 4)
	assert.Equal(t, 4, opts.SketchDepth)
	assert.Equal(t, 2048, opts.SketchWidth)
	assert.Equal(t, []float64{0.5, 0.95, 0.99}, opts.Percentiles)
	assert.NotNil(t, opts.Clock)
	assert.Equal(t, int64(0), opts.Capacity, "zero capacity is kept")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Options{
		Intervals: []interval.NamedInterval{{Name: "x", BucketDuration: -1}},
		Logger:    logging.Discard(),
	})
	assert.ErrorIs(t, err, ring.ErrInvalidInterval)

	_, err = New(Options{Backend: "nope", Logger: logging.Discard()})
	assert.ErrorIs(t, err, percentile.ErrUnknownBackend)

	_, err = New(Options{Capacity: -3, Logger: logging.Discard()})
	assert.ErrorIs(t, err, ring.ErrInvalidCapacity)
}

func TestTracker_RecordUsage(t *testing.T) {
	clock := &ManualClock{}
	tr := newTestTracker(t, clock)

	clock.Set(500)
	require.True(t, tr.RecordUsage("export", 2))
	require.True(t, tr.RecordUsage("import", 1))

	clock.Set(1500)
	require.True(t, tr.RecordUsage("export", 3))

	clock.Set(3200)
	require.True(t, tr.RecordUsage("render", 1))

	assert.GreaterOrEqual(t, tr.EstimateUsage("export"), int64(5))
	assert.GreaterOrEqual(t, tr.EstimateUsage("import"), int64(1))

	s := tr.Snapshot()
	assert.Equal(t, int64(3200), s.TakenAt)
	assert.Equal(t, int64(4), s.Events)
	assert.Equal(t, int64(7), s.RecordedTotal)
	assert.Equal(t, int64(0), s.Dropped)

	// window [2, 3] of the 1s ring: buckets 0 and 1 are flushed
	sec, ok := s.Interval("1s")
	require.True(t, ok)
	assert.Equal(t, 2, sec.Buckets)
	assert.Equal(t, int64(3), sec.Min)
	assert.Equal(t, int64(3), sec.Max)

	names := make([]string, 0, len(s.Features))
	for _, f := range s.Features {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"export", "import", "render"}, names)

	n, ok := s.Feature("export")
	require.True(t, ok)
	assert.GreaterOrEqual(t, n, int64(5))
}

func TestTracker_SnapshotNamedFeatures(t *testing.T) {
	tr := newTestTracker(t, &ManualClock{})
	tr.RecordUsage("a", 1)

	s := tr.Snapshot("a", "never-seen")
	require.Len(t, s.Features, 2)
	assert.Equal(t, "never-seen", s.Features[1].Name)

	_, ok := s.Feature("b")
	assert.False(t, ok)
}

func TestTracker_StaleEventsAreDropped(t *testing.T) {
	clock := &ManualClock{}
	tr := newTestTracker(t, clock)

	require.True(t, tr.RecordAt(10*60000, "a", 1, NoDuration))
	assert.False(t, tr.RecordAt(0, "a", 1, NoDuration))

	s := tr.Snapshot()
	assert.Equal(t, int64(1), s.Dropped)
	assert.Equal(t, int64(2), s.RecordedTotal)

	// feature counts do not depend on the time window
	assert.GreaterOrEqual(t, tr.EstimateUsage("a"), int64(2))
}

func TestTracker_Durations(t *testing.T) {
	tr := newTestTracker(t, &ManualClock{})

	for _, d := range []time.Duration{
		100 * time.Microsecond,
		200 * time.Microsecond,
		time.Millisecond,
		1100 * time.Microsecond,
	} {
		tr.RecordDuration("render", d)
	}
	tr.RecordDuration("render", 110*time.Microsecond)

	s := tr.Snapshot()
	assert.Equal(t, int64(5), s.LatencyCount)
	require.Len(t, s.Percentiles, 3)
	assert.Equal(t, 0.5, s.Percentiles[0].Quantile)
	// sorted samples are 100, 200, 200, 1000, 1100; the median straddles 200 and 1000
	assert.Equal(t, int64(600), s.Percentiles[0].Microseconds)
	assert.Equal(t, int64(1100), tr.Percentile(1))

	// 110µs and 200µs share a clamped value
	assert.GreaterOrEqual(t, tr.EstimateDurations(200*time.Microsecond), int64(2))

	var total int64
	for _, d := range s.Durations {
		total += d.Estimate
	}
	assert.GreaterOrEqual(t, total, int64(5))
}

func TestTracker_Rotate(t *testing.T) {
	clock := &ManualClock{}
	tr := newTestTracker(t, clock)

	tr.RecordAt(0, "a", 4, 250)
	tr.RecordAt(5000, "a", 1, 250)

	before := tr.Rotate()
	assert.GreaterOrEqual(t, before.Features[0].Estimate, int64(5))
	assert.Equal(t, int64(2), before.LatencyCount)

	after := tr.Snapshot()
	assert.Equal(t, int64(1), after.Rotations)
	assert.Equal(t, int64(0), tr.EstimateUsage("a"))
	assert.Equal(t, int64(0), after.LatencyCount)
	assert.Empty(t, after.Durations)

	sec, _ := after.Interval("1s")
	assert.Equal(t, 0, sec.Buckets)

	// lifetime counters survive rotation
	assert.Equal(t, int64(5), after.RecordedTotal)
	assert.Equal(t, int64(2), after.Events)
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	clock := &ManualClock{}
	tr := newTestTracker(t, clock)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			feature := fmt.Sprintf("feature-%d", w%4)
			for i := 0; i < 500; i++ {
				clock.Advance(1)
				tr.RecordUsage(feature, 1)
			}
		}(w)
	}
	wg.Wait()

	s := tr.Snapshot()
	assert.Equal(t, int64(4000), s.Events)
	assert.Equal(t, int64(4000), s.RecordedTotal)
	for _, f := range s.Features {
		assert.GreaterOrEqual(t, f.Estimate, int64(1000), f.Name)
	}
}

func TestTracker_FeatureNamesCapped(t *testing.T) {
	tr := newTestTracker(t, &ManualClock{})

	const writers = 8
	const perWriter = 1024

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				tr.RecordUsage(fmt.Sprintf("f-%d-%d", w, i), 1)
				tr.RecordUsage("shared", 1)
			}
		}(w)
	}
	wg.Wait()

	require.Greater(t, writers*perWriter, maxTrackedFeatures)
	assert.Equal(t, int64(maxTrackedFeatures), tr.nameCount.Load())

	stored := 0
	tr.names.Range(func(_, _ any) bool {
		stored++
		return true
	})
	assert.Equal(t, maxTrackedFeatures, stored)
	assert.Len(t, tr.Snapshot().Features, maxTrackedFeatures)
}

func TestFeatureKey(t *testing.T) {
	assert.Equal(t, FeatureKey("export"), FeatureKey("export"))
	assert.NotEqual(t, FeatureKey("export"), FeatureKey("import"))
	// FNV-32a offset basis
	assert.Equal(t, uint32(2166136261), FeatureKey(""))
}

func TestManualClock(t *testing.T) {
	var c ManualClock
	assert.Equal(t, int64(0), c.Now())
	c.Set(10)
	assert.Equal(t, int64(15), c.Advance(5))
}

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock(0)
	assert.Equal(t, time.Millisecond, c.Tick())
	a := c.Now()
	time.Sleep(3 * time.Millisecond)
	assert.Greater(t, c.Now(), a)
}
