package linear_model

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
)

func TestElasticNetRecoversLinearModel(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	n := 200
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		y.SetVec(i, 2*a-3*b+5)
	}

	en := NewElasticNet(WithAlpha(1e-8), WithL1Ratio(1), WithTol(1e-10), WithMaxIter(10000))
	require.NoError(t, en.Fit(X, y))
	assert.InDeltaSlice(t, []float64{2, -3}, en.Coef(), 1e-5)
	assert.InDelta(t, 5, en.Intercept(), 1e-5)

	pred, err := en.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y.RawVector().Data, pred.RawVector().Data, 1e-4)
}

func TestElasticNetSingleFeatureClosedForm(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{-1, 1, -1, 1})
	y := mat.NewVecDense(4, []float64{0, 4, 0, 4})

	tests := []struct {
		name    string
		l1Ratio float64
		want    float64
	}{
		// w = S(xᵀy, nαρ) / (xᵀx + nα(1-ρ)) with xᵀy = 8, xᵀx = 4, n = 4, α = 0.5
		{"lasso", 1, 1.5},
		{"ridge", 0, 8.0 / 6},
		{"mixed", 0.5, 7.0 / 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			en := NewElasticNet(WithAlpha(0.5), WithL1Ratio(tt.l1Ratio))
			require.NoError(t, en.Fit(X, y))
			assert.InDelta(t, tt.want, en.Coef()[0], 1e-9)
			assert.InDelta(t, 2, en.Intercept(), 1e-9)
		})
	}
}

func TestElasticNetLargeAlphaGivesMean(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 0, 2, 1, 3, 5})
	y := mat.NewVecDense(3, []float64{1, 2, 6})
	en := NewElasticNet(WithAlpha(1e6))
	require.NoError(t, en.Fit(X, y))

	assert.Equal(t, []float64{0, 0}, en.Coef())
	assert.InDelta(t, 3, en.Intercept(), 1e-12)
	assert.Equal(t, 1, en.NIter())
}

func TestElasticNetConvergenceWarning(t *testing.T) {
	p, buf := log.NewTestLoggerProvider(log.LevelDebug)
	log.SetProvider(p)
	t.Cleanup(func() { errors.SetZerologWarnFunc(nil) })

	rng := rand.New(rand.NewPCG(3, 4))
	n := 100
	X := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a := rng.NormFloat64()
		X.Set(i, 0, a)
		X.Set(i, 1, a+0.01*rng.NormFloat64())
		X.Set(i, 2, a-0.01*rng.NormFloat64())
		y.SetVec(i, X.At(i, 0)-2*X.At(i, 1)+3*X.At(i, 2)+rng.NormFloat64())
	}

	en := NewElasticNet(WithAlpha(0.01), WithMaxIter(2), WithTol(1e-12))
	require.NoError(t, en.Fit(X, y))
	assert.Equal(t, 2, en.NIter())
	assert.Contains(t, buf.String(), "ElasticNet failed to converge")
	assert.Contains(t, buf.String(), `"warning_type":"ConvergenceWarning"`)
}

func TestElasticNetConstantTargetConverges(t *testing.T) {
	p, buf := log.NewTestLoggerProvider(log.LevelDebug)
	log.SetProvider(p)
	t.Cleanup(func() { errors.SetZerologWarnFunc(nil) })

	X := mat.NewDense(4, 2, []float64{1, 0, 2, 1, 3, 5, 4, 2})

	en := NewElasticNet(WithAlpha(0.01))
	require.NoError(t, en.Fit(X, mat.NewVecDense(4, []float64{7, 7, 7, 7})))
	assert.Equal(t, []float64{0, 0}, en.Coef())
	assert.Equal(t, 7.0, en.Intercept())
	assert.Equal(t, 0, en.NIter())

	noIntercept := NewElasticNet(WithAlpha(0.01), WithFitIntercept(false))
	require.NoError(t, noIntercept.Fit(X, mat.NewVecDense(4, nil)))
	assert.Equal(t, []float64{0, 0}, noIntercept.Coef())

	assert.NotContains(t, buf.String(), "ConvergenceWarning")
	assert.NotContains(t, buf.String(), "failed to converge")
}

func TestElasticNetValidation(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewVecDense(2, []float64{0, 1})

	for _, en := range []*ElasticNet{
		NewElasticNet(WithAlpha(-1)),
		NewElasticNet(WithL1Ratio(1.5)),
		NewElasticNet(WithMaxIter(0)),
	} {
		err := en.Fit(X, y)
		var verr *errors.ValidationError
		assert.True(t, errors.As(err, &verr), en.String())
	}

	_, err := NewElasticNet().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
