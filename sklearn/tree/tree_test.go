package tree

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

func stepData() (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(8, 2, []float64{
		0, 5,
		1, 4,
		2, 7,
		3, 1,
		4, 0,
		5, 3,
		6, 2,
		7, 6,
	})
	y := mat.NewVecDense(8, []float64{1, 1, 1, 1, 9, 9, 9, 9})
	return X, y
}

func TestDecisionTreeRegressorFindsStep(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, dt.Fit(X, y))

	root := dt.Nodes()[0]
	assert.False(t, root.IsLeaf())
	assert.Equal(t, 0, root.Feature)
	assert.Equal(t, 3.5, root.Threshold)
	assert.Equal(t, 3, dt.NodeCount())
	assert.Equal(t, 1, dt.Depth())
	assert.Equal(t, []float64{1, 0}, dt.FeatureImportances())

	pred, err := dt.Predict(mat.NewDense(2, 2, []float64{3.4, 0, 3.6, 0}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pred.AtVec(0))
	assert.Equal(t, 9.0, pred.AtVec(1))
}

func TestDecisionTreeRegressorUnlimitedDepthInterpolates(t *testing.T) {
	n := 50
	X := mat.NewDense(n, 1, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.SetVec(i, math.Sin(float64(i)))
	}
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(pred, y, 1e-12))
	assert.Equal(t, n, dt.NumLeaves())
}

func TestDecisionTreeRegressorMinSamplesLeaf(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithMinSamplesLeaf(3))
	require.NoError(t, dt.Fit(X, y))
	for _, n := range dt.Nodes() {
		if n.IsLeaf() {
			assert.GreaterOrEqual(t, n.NSamples, 3)
		}
	}
}

func TestDecisionTreeRegressorMinSamplesSplit(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithMinSamplesSplit(9))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1, dt.NodeCount())
	assert.Equal(t, 5.0, dt.Nodes()[0].Value)
}

func TestDecisionTreeRegressorFitRowsWithDuplicates(t *testing.T) {
	rows := [][]float64{{0}, {1}, {2}, {3}}
	y := []float64{0, 0, 10, 10}

	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, dt.FitRows(rows, y, []int{0, 0, 0, 3}))
	assert.Equal(t, 0.0, dt.PredictRow([]float64{0.5}))
	assert.Equal(t, 10.0, dt.PredictRow([]float64{2.5}))

	_, nSamples := dt.state.GetDimensions()
	assert.Equal(t, 4, nSamples)
}

func TestDecisionTreeRegressorMaxFeaturesIsSeeded(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	X := mat.NewDense(200, 5, nil)
	y := mat.NewVecDense(200, nil)
	for i := 0; i < 200; i++ {
		for j := 0; j < 5; j++ {
			X.Set(i, j, rng.Float64())
		}
		y.SetVec(i, X.At(i, 0)+2*X.At(i, 3))
	}

	fit := func() []float64 {
		dt := NewDecisionTreeRegressor(WithMaxDepth(4), WithMaxFeatures(2), WithRandomState(11))
		require.NoError(t, dt.Fit(X, y))
		pred, err := dt.Predict(X)
		require.NoError(t, err)
		return pred.RawVector().Data
	}
	assert.Equal(t, fit(), fit())
}

func TestDecisionTreeRegressorErrors(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	_, err := dt.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X, y := stepData()
	err = dt.Fit(X, mat.NewVecDense(3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	bad := NewDecisionTreeRegressor(WithMinSamplesSplit(1))
	err = bad.Fit(X, y)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	require.NoError(t, dt.Fit(X, y))
	_, err = dt.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.As(err, &de))
}
