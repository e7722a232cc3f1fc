package sampling

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithoutReplacement(t *testing.T) {
	rng := NewRand(1)
	idx := WithoutReplacement(rng, 10, 4)
	assert.Len(t, idx, 4)

	seen := map[int]bool{}
	for _, i := range idx {
		assert.False(t, seen[i])
		assert.True(t, i >= 0 && i < 10)
		seen[i] = true
	}

	all := WithoutReplacement(rng, 5, 99)
	sort.Ints(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, all)
	assert.Len(t, WithoutReplacement(rng, 5, 0), 1)
}

func TestBootstrapIsSeeded(t *testing.T) {
	a := Bootstrap(NewRand(3), 100)
	b := Bootstrap(NewRand(3), 100)
	assert.Equal(t, a, b)
	for _, i := range a {
		assert.True(t, i >= 0 && i < 100)
	}
}

func TestCounts(t *testing.T) {
	assert.Equal(t, 8, CeilCount(0.75, 10))
	assert.Equal(t, 8, CeilCount(0.71, 10))
	assert.Equal(t, 1, CeilCount(0, 10))
	assert.Equal(t, 10, CeilCount(1.5, 10))
	assert.Equal(t, 7, FloorCount(0.79, 10))
	assert.Equal(t, 1, FloorCount(0.01, 10))
}

func TestDeriveSeed(t *testing.T) {
	assert.NotEqual(t, DeriveSeed(42, 0), DeriveSeed(42, 1))
	assert.Equal(t, DeriveSeed(42, 5), DeriveSeed(42, 5))
	assert.Equal(t, []int{0, 1, 2}, All(3))
}
