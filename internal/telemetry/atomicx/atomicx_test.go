package atomicx

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterlockedMax(t *testing.T) {
	var v atomic.Int64
	v.Store(10)

	assert.Equal(t, int64(10), InterlockedMax(&v, 5))
	assert.Equal(t, int64(10), v.Load())

	assert.Equal(t, int64(42), InterlockedMax(&v, 42))
	assert.Equal(t, int64(42), v.Load())
}

func TestInterlockedMin(t *testing.T) {
	var v atomic.Int64
	v.Store(10)

	assert.Equal(t, int64(10), InterlockedMin(&v, 11))
	assert.Equal(t, int64(-3), InterlockedMin(&v, -3))
	assert.Equal(t, int64(-3), v.Load())
}

func TestInterlockedExtrema_Concurrent(t *testing.T) {
	const writers = 16
	const perWriter = 5000

	var hi, lo atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				InterlockedMax(&hi, int64(w*perWriter+i))
				InterlockedMin(&lo, -int64(w*perWriter+i))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(writers*perWriter-1), hi.Load())
	assert.Equal(t, -int64(writers*perWriter-1), lo.Load())
}

func TestInterlockedAdd(t *testing.T) {
	var v atomic.Int64

	assert.Equal(t, int64(5), InterlockedAdd(&v, 5))
	assert.Equal(t, int64(2), InterlockedAdd(&v, -3))

	v.Store(math.MaxInt64 - 1)
	assert.Equal(t, int64(math.MaxInt64), InterlockedAdd(&v, 10))

	v.Store(math.MinInt64 + 2)
	assert.Equal(t, int64(math.MinInt64+1), InterlockedAdd(&v, -10))
}

func TestInterlockedAdd_Concurrent(t *testing.T) {
	var v atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10000; i++ {
				InterlockedAdd(&v, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(80000), v.Load())
}

func TestSaturatingAdd(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		want int64
	}{
		{"plain", 2, 3, 5},
		{"negative", -2, -3, -5},
		{"overflow", math.MaxInt64, 1, math.MaxInt64},
		{"underflow", math.MinInt64 + 1, -1, math.MinInt64 + 1},
		{"reaches sentinel", -1, math.MinInt64 + 1, math.MinInt64 + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SaturatingAdd(tt.a, tt.b))
		})
	}
}

func TestExtremum(t *testing.T) {
	e := NewExtremum()

	_, _, ok := e.Range()
	require.False(t, ok)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := -100; i <= 100; i++ {
				e.Observe(int64(i * (w + 1)))
			}
		}(w)
	}
	wg.Wait()

	lo, hi, ok := e.Range()
	require.True(t, ok)
	assert.Equal(t, int64(-400), lo)
	assert.Equal(t, int64(400), hi)
	assert.Equal(t, int64(4*201), e.Count())

	e.Reset()
	_, _, ok = e.Range()
	assert.False(t, ok)
}
