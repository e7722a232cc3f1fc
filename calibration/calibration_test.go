package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

func TestEmpiricalCoverage(t *testing.T) {
	yTrue := []float64{0, 1, 2, 3}
	yPred := []float64{0, 0, 0, 0}
	widths := []float64{1, 1, 1, 1}

	tests := []struct {
		c    float64
		want float64
	}{
		{0, 0.25},
		{1, 0.5},
		{2.5, 0.75},
		{3, 1},
	}
	for _, tt := range tests {
		got, err := EmpiricalCoverage(tt.c, yTrue, yPred, widths)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "c=%v", tt.c)
	}
}

func TestEmpiricalCoverageErrors(t *testing.T) {
	_, err := EmpiricalCoverage(1, nil, nil, nil)
	assert.Error(t, err)
	_, err = EmpiricalCoverage(1, []float64{1, 2}, []float64{1}, []float64{1, 1})
	assert.Error(t, err)
	_, err = EmpiricalCoverage(1, []float64{1, 2}, []float64{1, 2}, []float64{1})
	assert.Error(t, err)
}

func TestFindMinScale(t *testing.T) {
	// residuals 1..20 with unit widths: 95% coverage needs c = 19
	yTrue := make([]float64, 20)
	yPred := make([]float64, 20)
	widths := make([]float64, 20)
	for i := range yTrue {
		yTrue[i] = float64(i + 1)
		widths[i] = 1
	}

	c, err := FindMinScale(yTrue, yPred, widths)
	require.NoError(t, err)
	assert.InDelta(t, 19, c, 1e-3)
	assert.GreaterOrEqual(t, c, 19.0)

	cov, err := EmpiricalCoverage(c, yTrue, yPred, widths)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cov, 0.95)

	c, err = FindMinScale(yTrue, yPred, widths, WithTarget(0.5), WithTol(1e-6))
	require.NoError(t, err)
	assert.InDelta(t, 10, c, 1e-5)
}

func TestFindMinScaleMaxIters(t *testing.T) {
	yTrue := []float64{1}
	c, err := FindMinScale(yTrue, []float64{0}, []float64{1}, WithMaxIters(1))
	require.NoError(t, err)
	assert.Equal(t, 25.0, c)
}

func TestFindMinScaleCMaxTooSmall(t *testing.T) {
	_, err := FindMinScale([]float64{100}, []float64{0}, []float64{1})
	require.Error(t, err)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
	assert.Contains(t, err.Error(), "c_max=50 too small")
}

func TestFindMinScaleValidation(t *testing.T) {
	y := []float64{1}
	_, err := FindMinScale(y, y, y, WithTarget(1.5))
	assert.Error(t, err)
	_, err = FindMinScale(y, y, y, WithCMax(0))
	assert.Error(t, err)
	_, err = FindMinScale(y, y, y, WithTol(0))
	assert.Error(t, err)
}

func TestEnsembleWidths(t *testing.T) {
	w, err := EnsembleWidths([][]float64{{1, 5}, {3, 5}})
	require.NoError(t, err)
	assert.InDelta(t, 1, w[0], 1e-12)
	assert.InDelta(t, 0, w[1], 1e-12)
	assert.False(t, math.IsNaN(w[0]))

	_, err = EnsembleWidths(nil)
	assert.Error(t, err)
	_, err = EnsembleWidths([][]float64{{1, 2}, {1}})
	assert.Error(t, err)
}
