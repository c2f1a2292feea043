// Package hashfamily implements a pairwise-independent hash family over
// 32-bit keys.
//
// A member of the family is h(x) = ((a*x + b) mod p) truncated to 32 bits,
// where p = 2^61-1 is a Mersenne prime, a is drawn from [1, p) and b from
// [0, p). Coefficients always come from an explicit PRNG so that callers
// control reproducibility; there is no package-level random state.
package hashfamily

import (
	"math/bits"
	"math/rand/v2"
)

// mersenne61 is the modulus 2^61-1.
const mersenne61 = (1 << 61) - 1

// Hash is one member of the family.
type Hash struct {
	a uint64
	b uint64
}

// New draws a hash function from rng.
func New(rng *rand.Rand) Hash {
	return Hash{
		a: 1 + rng.Uint64N(mersenne61-1),
		b: rng.Uint64N(mersenne61),
	}
}

// NewSeeded returns the hash function selected by seed. The same seed
// always yields the same function.
func NewSeeded(seed uint64) Hash {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewSet draws n independent hash functions from rng.
func NewSet(n int, rng *rand.Rand) []Hash {
	hs := make([]Hash, n)
	for i := range hs {
		hs[i] = New(rng)
	}
	return hs
}

// ComputeHash hashes key.
func (h Hash) ComputeHash(key uint32) uint32 {
	hi, lo := bits.Mul64(h.a, uint64(key))
	lo, carry := bits.Add64(lo, h.b, 0)
	hi += carry
	return uint32(mod61(hi, lo))
}

// mod61 reduces the 128-bit value hi:lo modulo 2^61-1.
func mod61(hi, lo uint64) uint64 {
	// hi:lo = H*2^61 + L and 2^61 ≡ 1, so the value is congruent to H + L.
	l := lo & mersenne61
	h := (hi << 3) | (lo >> 61)
	r := l + h
	r = (r & mersenne61) + (r >> 61)
	if r >= mersenne61 {
		r -= mersenne61
	}
	return r
}
