// Package sampling draws row subsets for bagging and stochastic boosting.
package sampling

import (
	"math"
	"math/rand/v2"
)

// NewRand returns a PCG-backed generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb))
}

// DeriveSeed mixes a base seed with a stream index so that parallel
// workers draw independent, reproducible streams.
func DeriveSeed(base uint64, stream int) uint64 {
	z := base + uint64(stream+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// WithoutReplacement returns k distinct indices from [0, n) in random
// order. k is clamped to [1, n].
func WithoutReplacement(rng *rand.Rand, n, k int) []int {
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)
	return perm[:k]
}

// Bootstrap draws n indices from [0, n) with replacement.
func Bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	return idx
}

// CeilCount returns ceil(rate*n), clamped to [1, n].
func CeilCount(rate float64, n int) int {
	k := int(math.Ceil(rate*float64(n) - 1e-9))
	return min(max(k, 1), n)
}

// FloorCount returns floor(rate*n), clamped to [1, n].
func FloorCount(rate float64, n int) int {
	k := int(rate * float64(n))
	return min(max(k, 1), n)
}

// All returns 0..n-1.
func All(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
