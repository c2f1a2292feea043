package interval

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/tally/internal/telemetry/ring"
)

func testIntervals() []NamedInterval {
	return []NamedInterval{
		{Unit: UnitSecond, Name: "10", BucketDuration: 10},
		{Unit: UnitCustom, Name: "100", BucketDuration: 100},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, 2)
	assert.ErrorIs(t, err, ErrNoIntervals)

	_, err = New([]NamedInterval{{Name: "bad", BucketDuration: 0}}, 2)
	assert.ErrorIs(t, err, ring.ErrInvalidInterval)

	_, err = New(testIntervals(), -1)
	assert.ErrorIs(t, err, ring.ErrInvalidCapacity)

	_, err = New([]NamedInterval{{Name: "a", BucketDuration: 1}, {Name: "a", BucketDuration: 2}}, 1)
	assert.Error(t, err)
}

func TestStandardIntervals(t *testing.T) {
	ivs := StandardIntervals(time.Millisecond)
	require.Len(t, ivs, 4)

	assert.Equal(t, int64(1000), ivs[0].BucketDuration)
	assert.Equal(t, int64(60000), ivs[1].BucketDuration)
	assert.Equal(t, int64(900000), ivs[2].BucketDuration)
	assert.Equal(t, int64(3600000), ivs[3].BucketDuration)
	assert.Equal(t, UnitQuarterHour, ivs[2].Unit)

	// ticks coarser than an interval still yield one-tick buckets
	ivs = StandardIntervals(2 * time.Hour)
	assert.Equal(t, int64(1), ivs[0].BucketDuration)
}

func TestAggregator_GetStats(t *testing.T) {
	a, err := New(testIntervals(), 1)
	require.NoError(t, err)

	require.True(t, a.Record(0, 4))
	require.True(t, a.Record(15, 6))
	require.True(t, a.Record(40, 2)) // buckets 2 and 3 are skipped
	require.True(t, a.Record(60, 1))

	stats := a.GetStats()
	require.Len(t, stats, 2)

	// 10-tick ring: window [5, 6]; flushed buckets 0..4 = 4, 6, 0, 0, 2
	fine := stats[0]
	assert.Equal(t, "10", fine.Name)
	assert.Equal(t, 5, fine.Buckets)
	assert.Equal(t, int64(0), fine.Min)
	assert.Equal(t, int64(6), fine.Max)
	assert.InDelta(t, 2.4, fine.Average, 1e-9)

	// 100-tick ring has not closed a bucket yet
	coarse := stats[1]
	assert.Equal(t, 0, coarse.Buckets)
	assert.Equal(t, int64(0), coarse.Min)

	// GetStats does not drain
	assert.Equal(t, stats, a.GetStats())

	drained := a.Dequeue()
	assert.Equal(t, []int64{4, 6, 0, 0, 2}, drained["10"])
	assert.Empty(t, drained["100"])
	assert.Equal(t, 0, a.GetStats()[0].Buckets)
}

func TestAggregator_Totals(t *testing.T) {
	a, err := New(testIntervals(), 0)
	require.NoError(t, err)

	require.True(t, a.Record(1000, 5))
	require.True(t, a.Record(1050, -2))

	// stale for the 10-tick ring but still open in the 100-tick ring
	assert.True(t, a.Record(1001, 3))

	// stale everywhere
	require.True(t, a.Record(5000, 1))
	assert.False(t, a.Record(1000, 7))

	assert.Equal(t, int64(14), a.RecordedTotal())
	assert.Equal(t, int64(1), a.Dropped())

	lo, hi, ok := a.Extremes()
	require.True(t, ok)
	assert.Equal(t, int64(-2), lo)
	assert.Equal(t, int64(7), hi)

	rs := a.RingStats()
	assert.Equal(t, int64(2), rs["10"].Rejected)
	assert.Equal(t, int64(1), rs["100"].Rejected)
}

func TestAggregator_ConcurrentRecord(t *testing.T) {
	a, err := New(testIntervals(), 2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ts := int64(0); ts < 1000; ts++ {
				a.Record(ts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8000), a.RecordedTotal())

	a.Record(100000, 0)
	var total int64
	for _, v := range a.Dequeue()["100"] {
		total += v
	}
	assert.Equal(t, int64(8000)-a.RingStats()["100"].Rejected, total)
	assert.LessOrEqual(t, a.Dropped(), a.RingStats()["100"].Rejected)
}

func TestAggregator_Intervals(t *testing.T) {
	a, err := New(testIntervals(), 1)
	require.NoError(t, err)
	assert.Equal(t, testIntervals(), a.Intervals())
}
