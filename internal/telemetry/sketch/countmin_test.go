package sketch

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSketch(t testing.TB, depth, width int) *CountMin {
	t.Helper()
	cm, err := New(depth, width, rand.New(rand.NewPCG(42, 43)))
	require.NoError(t, err)
	return cm
}

func TestNew_InvalidDimensions(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))

	_, err := New(0, 10, rng)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = New(4, -1, rng)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = NewWithErrorBounds(0, 0.01, rng)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestNewWithErrorBounds(t *testing.T) {
	cm, err := NewWithErrorBounds(0.01, 0.01, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)

	assert.Equal(t, 272, cm.Width())
	assert.Equal(t, 5, cm.Depth())
}

func TestCountMin_Exact(t *testing.T) {
	cm := newTestSketch(t, 4, 4096)

	cm.InterlockedAdd(1, 5)
	cm.InterlockedAdd(2, 3)
	cm.InterlockedAdd(1, 2)

	assert.Equal(t, int64(7), cm.Estimate(1))
	assert.Equal(t, int64(3), cm.Estimate(2))
	assert.Equal(t, int64(10), cm.Total())
}

func TestCountMin_IgnoresNonPositive(t *testing.T) {
	cm := newTestSketch(t, 2, 64)

	cm.InterlockedAdd(9, 4)
	cm.InterlockedAdd(9, 0)
	cm.InterlockedAdd(9, -3)

	assert.Equal(t, int64(4), cm.Estimate(9))
	assert.Equal(t, int64(4), cm.Total())
}

func TestCountMin_NeverUndercounts(t *testing.T) {
	// deliberately narrow so collisions are common
	cm := newTestSketch(t, 3, 32)
	rng := rand.New(rand.NewPCG(7, 8))

	truth := make(map[uint32]int64)
	for i := 0; i < 20000; i++ {
		key := rng.Uint32N(500)
		n := rng.Int64N(5) + 1
		truth[key] += n
		cm.InterlockedAdd(key, n)
	}

	for key, want := range truth {
		assert.GreaterOrEqual(t, cm.Estimate(key), want, "key %d", key)
	}
}

func TestCountMin_OvercountIsBounded(t *testing.T) {
	cm := newTestSketch(t, 5, 2048)
	rng := rand.New(rand.NewPCG(9, 10))

	truth := make(map[uint32]int64)
	for i := 0; i < 50000; i++ {
		key := rng.Uint32N(3000)
		truth[key]++
		cm.InterlockedAdd(key, 1)
	}

	bound := cm.ErrorBound()
	exceeded := 0
	for key, want := range truth {
		if cm.Estimate(key)-want > bound {
			exceeded++
		}
	}

	// with probability 1-e^-5 per key an estimate stays within the bound
	assert.Less(t, float64(exceeded), 0.02*float64(len(truth)))
}

func TestCountMin_Concurrent(t *testing.T) {
	cm := newTestSketch(t, 4, 1024)

	const writers = 8
	const perWriter = 10000

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				cm.InterlockedAdd(uint32(i%10), 1)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(writers*perWriter), cm.Total())
	for key := uint32(0); key < 10; key++ {
		assert.GreaterOrEqual(t, cm.Estimate(key), int64(writers*perWriter/10))
	}
}

func TestCountMin_Reset(t *testing.T) {
	cm := newTestSketch(t, 2, 128)
	cm.InterlockedAdd(5, 100)

	cm.Reset()

	assert.Equal(t, int64(0), cm.Estimate(5))
	assert.Equal(t, int64(0), cm.Total())
}

func BenchmarkCountMin_InterlockedAdd_Parallel(b *testing.B) {
	cm := newTestSketch(b, 4, 2048)
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := uint32(0)
		for pb.Next() {
			cm.InterlockedAdd(i%256, 1)
			i++
		}
	})
}
