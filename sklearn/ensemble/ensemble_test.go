package ensemble

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/metrics"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

func makeRegression(n int, seed uint64) (*mat.Dense, *mat.VecDense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			X.Set(i, j, rng.Float64()*2-1)
		}
		y.SetVec(i, 3*X.At(i, 0)+math.Sin(3*X.At(i, 1))+0.1*rng.NormFloat64())
	}
	return X, y
}

func TestGradientBoostingStagedLossDecreases(t *testing.T) {
	X, y := makeRegression(300, 1)
	gbt := NewGradientBoostingRegressor(WithGBNEstimators(50), WithGBLearningRate(0.1), WithGBMaxDepth(3))
	require.NoError(t, gbt.Fit(X, y))

	var mses []float64
	require.NoError(t, gbt.StagedPredict(X, func(stage int, pred *mat.VecDense) bool {
		mse, err := metrics.MSE(y, pred)
		require.NoError(t, err)
		mses = append(mses, mse)
		return true
	}))
	require.Len(t, mses, 50)
	for i := 1; i < len(mses); i++ {
		assert.LessOrEqual(t, mses[i], mses[i-1]+1e-12, "stage %d", i)
	}
	assert.InDeltaSlice(t, gbt.TrainScore(), mses, 1e-9)

	pred, err := gbt.Predict(X)
	require.NoError(t, err)
	final, err := metrics.MSE(y, pred)
	require.NoError(t, err)
	assert.InDelta(t, mses[len(mses)-1], final, 1e-12)
	assert.Less(t, final, 0.2)
}

func TestGradientBoostingSingleStageIsMeanPlusTree(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewVecDense(4, []float64{0, 0, 4, 4})
	gbt := NewGradientBoostingRegressor(WithGBNEstimators(1), WithGBLearningRate(0.5), WithGBMaxDepth(1))
	require.NoError(t, gbt.Fit(X, y))

	pred, err := gbt.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 3, 3}, pred.RawVector().Data, 1e-12)
}

func TestGradientBoostingSubsampleIsSeeded(t *testing.T) {
	X, y := makeRegression(200, 2)
	fit := func() []float64 {
		gbt := NewGradientBoostingRegressor(WithGBNEstimators(10), WithGBSubsample(0.6), WithGBRandomState(5))
		require.NoError(t, gbt.Fit(X, y))
		pred, err := gbt.Predict(X)
		require.NoError(t, err)
		return pred.RawVector().Data
	}
	assert.Equal(t, fit(), fit())
}

func TestGradientBoostingValidation(t *testing.T) {
	X, y := makeRegression(20, 3)
	var ve *errors.ValidationError
	assert.True(t, errors.As(NewGradientBoostingRegressor(WithGBSubsample(0)).Fit(X, y), &ve))
	assert.True(t, errors.As(NewGradientBoostingRegressor(WithGBNEstimators(0)).Fit(X, y), &ve))

	_, err := NewGradientBoostingRegressor().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestRandomForestRunningMean(t *testing.T) {
	X, y := makeRegression(200, 4)
	rf := NewRandomForestRegressor(WithRFNEstimators(12), WithRFMaxDepth(6), WithRFRandomState(9))
	require.NoError(t, rf.Fit(X, y))
	assert.Len(t, rf.Estimators(), 12)

	preds, err := rf.EstimatorPredictions(X)
	require.NoError(t, err)
	require.Len(t, preds, 12)

	stages := 0
	require.NoError(t, rf.StagedPredict(X, func(stage int, pred *mat.VecDense) bool {
		for _, i := range []int{0, 57, 199} {
			var sum float64
			for k := 0; k <= stage; k++ {
				sum += preds[k][i]
			}
			assert.InDelta(t, sum/float64(stage+1), pred.AtVec(i), 1e-12)
		}
		stages++
		return true
	}))
	assert.Equal(t, 12, stages)

	pred, err := rf.Predict(X)
	require.NoError(t, err)
	mse, err := metrics.MSE(y, pred)
	require.NoError(t, err)
	assert.Less(t, mse, 0.5)
}

func TestRandomForestDeterministicAcrossWorkers(t *testing.T) {
	X, y := makeRegression(150, 5)
	fit := func(jobs int) []float64 {
		rf := NewRandomForestRegressor(WithRFNEstimators(8), WithRFRandomState(3), WithRFNJobs(jobs))
		require.NoError(t, rf.Fit(X, y))
		pred, err := rf.Predict(X)
		require.NoError(t, err)
		return pred.RawVector().Data
	}
	assert.Equal(t, fit(1), fit(4))
}

func TestStagedPredictStopsEarly(t *testing.T) {
	X, y := makeRegression(50, 6)
	gbt := NewGradientBoostingRegressor(WithGBNEstimators(10))
	require.NoError(t, gbt.Fit(X, y))

	calls := 0
	require.NoError(t, gbt.StagedPredict(X, func(stage int, _ *mat.VecDense) bool {
		calls++
		return stage < 2
	}))
	assert.Equal(t, 3, calls)
}
