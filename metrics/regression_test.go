package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

func vec(v ...float64) *mat.VecDense { return mat.NewVecDense(len(v), v) }

func TestVectorMetrics(t *testing.T) {
	yTrue := vec(1, 2, 3, 4)
	yPred := vec(1.5, 2.5, 2.5, 3.5)

	tests := []struct {
		name string
		fn   func(a, b *mat.VecDense) (float64, error)
		want float64
	}{
		{"MSE", MSE, 0.25},
		{"RMSE", RMSE, 0.5},
		{"MAE", MAE, 0.5},
		// rss 1, tss 5
		{"R2Score", R2Score, 0.8},
		// (0.5 + 0.25 + 1/6 + 0.125) / 4 · 100
		{"MAPE", MAPE, (0.5 + 0.25 + 0.5/3 + 0.125) / 4 * 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(yTrue, yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)

			perfect, err := tt.fn(yTrue, yTrue)
			require.NoError(t, err)
			if tt.name == "R2Score" {
				assert.Equal(t, 1.0, perfect)
			} else {
				assert.Equal(t, 0.0, perfect)
			}
		})
	}
}

func TestVectorMetricsRejectBadInput(t *testing.T) {
	fns := map[string]func(a, b *mat.VecDense) (float64, error){
		"MSE": MSE, "RMSE": RMSE, "MAE": MAE, "R2Score": R2Score,
		"MAPE": MAPE, "ExplainedVarianceScore": ExplainedVarianceScore,
	}
	for name, fn := range fns {
		t.Run(name, func(t *testing.T) {
			_, err := fn(vec(1, 2, 3), vec(1, 2))
			var de *errors.DimensionError
			assert.True(t, errors.As(err, &de), "mismatch: %v", err)

			_, err = fn(&mat.VecDense{}, &mat.VecDense{})
			assert.Error(t, err)

			_, err = fn(nil, vec(1))
			assert.Error(t, err)
		})
	}
}

func TestMSEMatchesHandComputation(t *testing.T) {
	got, err := MSE(vec(10, 20, 30), vec(12, 18, 33))
	require.NoError(t, err)
	assert.InDelta(t, 17.0/3.0, got, 1e-12)
}

func TestMSESliceAndVariance(t *testing.T) {
	got, err := MSESlice([]float64{1, 2, 3}, []float64{1, 2, 5})
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, got, 1e-12)

	_, err = MSESlice(nil, nil)
	assert.Error(t, err)
	_, err = MSESlice([]float64{1}, []float64{1, 2})
	assert.Error(t, err)

	assert.InDelta(t, 1.25, PopulationVariance([]float64{1, 2, 3, 4}), 1e-12)
	assert.Equal(t, 0.0, PopulationVariance([]float64{7}))
}

func TestDegenerateTargets(t *testing.T) {
	_, err := R2Score(vec(2, 2, 2), vec(1, 2, 3))
	assert.Error(t, err)
	_, err = MAPE(vec(0, 0), vec(1, 1))
	assert.Error(t, err)
	_, err = ExplainedVarianceScore(vec(3, 3), vec(1, 2))
	assert.Error(t, err)
}

func TestExplainedVarianceIgnoresBias(t *testing.T) {
	ev, err := ExplainedVarianceScore(vec(1, 2, 3, 4), vec(2, 3, 4, 5))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ev, 1e-12)

	r2, err := R2Score(vec(1, 2, 3, 4), vec(2, 3, 4, 5))
	require.NoError(t, err)
	assert.Less(t, r2, ev)
	assert.False(t, math.IsNaN(r2))
}

func BenchmarkMSE(b *testing.B) {
	n := 10000
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, float64(i))
		yPred.SetVec(i, float64(i)+0.5)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = MSE(yTrue, yPred)
	}
}
