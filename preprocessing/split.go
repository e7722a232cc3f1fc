package preprocessing

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

// TrainTestSplit shuffles 0..n-1 with a seeded source and returns the train
// and test row indices. The test set holds ceil(testSize*n) rows.
func TrainTestSplit(n int, testSize float64, seed uint64) (train, test []int, err error) {
	if n < 2 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "need at least 2 samples")
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		return nil, nil, errors.NewValueError("TrainTestSplit", "test_size leaves no training samples")
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest], nil
}
