package hashfamily

import (
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeeded_Deterministic(t *testing.T) {
	h1 := NewSeeded(7)
	h2 := NewSeeded(7)
	h3 := NewSeeded(8)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	for k := uint32(0); k < 1000; k++ {
		require.Equal(t, h1.ComputeHash(k), h2.ComputeHash(k))
	}
}

func TestNew_Coefficients(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 1000; i++ {
		h := New(rng)
		assert.GreaterOrEqual(t, h.a, uint64(1))
		assert.Less(t, h.a, uint64(mersenne61))
		assert.Less(t, h.b, uint64(mersenne61))
	}
}

func TestComputeHash_MatchesBigInt(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	p := new(big.Int).SetUint64(mersenne61)
	mask := new(big.Int).SetUint64(0xffffffff)

	for i := 0; i < 200; i++ {
		h := New(rng)
		key := rng.Uint32()

		want := new(big.Int).SetUint64(h.a)
		want.Mul(want, new(big.Int).SetUint64(uint64(key)))
		want.Add(want, new(big.Int).SetUint64(h.b))
		want.Mod(want, p)
		want.And(want, mask)

		assert.Equal(t, uint32(want.Uint64()), h.ComputeHash(key), "a=%d b=%d key=%d", h.a, h.b, key)
	}
}

func TestComputeHash_Collisions(t *testing.T) {
	const n = 50000
	rng := rand.New(rand.NewPCG(11, 12))
	h := New(rng)

	keys := make(map[uint32]struct{}, n)
	for len(keys) < n {
		keys[rng.Uint32()] = struct{}{}
	}

	seen := make(map[uint32]struct{}, n)
	collisions := 0
	for k := range keys {
		v := h.ComputeHash(k)
		if _, dup := seen[v]; dup {
			collisions++
		}
		seen[v] = struct{}{}
	}

	// birthday bound: n^2 / 2^33 ≈ 0.3
	assert.LessOrEqual(t, collisions, 10)
}

func TestComputeHash_Uniform(t *testing.T) {
	const buckets = 64
	const n = buckets * 2000

	rng := rand.New(rand.NewPCG(21, 22))
	h := New(rng)

	var counts [buckets]int
	for i := 0; i < n; i++ {
		counts[h.ComputeHash(rng.Uint32())%buckets]++
	}

	for i, c := range counts {
		assert.InDelta(t, n/buckets, c, 0.2*n/buckets, "bucket %d", i)
	}
}

func TestNewSet(t *testing.T) {
	hs := NewSet(4, rand.New(rand.NewPCG(1, 1)))
	require.Len(t, hs, 4)

	seen := make(map[Hash]struct{})
	for _, h := range hs {
		seen[h] = struct{}{}
	}
	assert.Len(t, seen, 4)
}

func BenchmarkComputeHash(b *testing.B) {
	h := NewSeeded(1)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = h.ComputeHash(uint32(i))
	}
}
