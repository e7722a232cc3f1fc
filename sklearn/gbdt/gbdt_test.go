package gbdt

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/metrics"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
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

func TestBinMapper(t *testing.T) {
	m := newBinMapper([]float64{3, 1, 2, 2, 1}, 255)
	assert.Equal(t, []float64{1.5, 2.5}, m.UpperBounds)
	assert.Equal(t, 3, m.NumBins())
	assert.Equal(t, 0, m.ValueToBin(1))
	assert.Equal(t, 1, m.ValueToBin(2))
	assert.Equal(t, 2, m.ValueToBin(3))
	assert.Equal(t, 2, m.ValueToBin(100))

	column := make([]float64, 1000)
	for i := range column {
		column[i] = float64(i)
	}
	q := newBinMapper(column, 16)
	assert.LessOrEqual(t, q.NumBins(), 16)
	assert.Greater(t, q.NumBins(), 8)
	assert.IsIncreasing(t, q.UpperBounds)
}

func TestXGBSingleStump(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewVecDense(4, []float64{0, 0, 4, 4})

	tests := []struct {
		name   string
		lambda float64
		want   []float64
	}{
		{"no regularisation", 0, []float64{0, 0, 4, 4}},
		{"lambda one", 1, []float64{2 - 4.0/3, 2 - 4.0/3, 2 + 4.0/3, 2 + 4.0/3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xgb := NewXGBRegressor(WithNEstimators(1), WithLearningRate(1), WithMaxDepth(1), WithRegLambda(tt.lambda))
			require.NoError(t, xgb.Fit(X, y))

			pred, err := xgb.Predict(X)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, pred.RawVector().Data, 1e-6)

			tree := xgb.Model().Trees[0]
			assert.Equal(t, 2, tree.NumLeaves)
			assert.Equal(t, 0, tree.Nodes[0].SplitFeature)
			assert.InDelta(t, 1.5, tree.Nodes[0].Threshold, 1e-12)
		})
	}
}

func TestDepthWiseRespectsMaxDepth(t *testing.T) {
	X, y := makeRegression(300, 1)
	xgb := NewXGBRegressor(WithNEstimators(5), WithMaxDepth(2))
	require.NoError(t, xgb.Fit(X, y))

	for _, tree := range xgb.Model().Trees {
		assert.LessOrEqual(t, tree.MaxDepth(), 2)
		assert.LessOrEqual(t, tree.NumLeaves, 4)
	}
}

func TestLeafWiseRespectsNumLeaves(t *testing.T) {
	X, y := makeRegression(400, 2)
	lgbm := NewLGBMRegressor(WithNEstimators(5), WithNumLeaves(4), WithMinChildSamples(5))
	require.NoError(t, lgbm.Fit(X, y))

	maxLeaves := 0
	for _, tree := range lgbm.Model().Trees {
		assert.LessOrEqual(t, tree.NumLeaves, 4)
		maxLeaves = max(maxLeaves, tree.NumLeaves)
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				assert.GreaterOrEqual(t, node.InternalCount, 5)
			}
		}
	}
	assert.Equal(t, 4, maxLeaves)
}

func TestStagedPredictMatchesPredictIter(t *testing.T) {
	X, y := makeRegression(300, 3)
	for _, reg := range []*Regressor{
		NewXGBRegressor(WithNEstimators(30)),
		NewLGBMRegressor(WithNEstimators(30)),
	} {
		t.Run(reg.name, func(t *testing.T) {
			require.NoError(t, reg.Fit(X, y))

			var mses []float64
			require.NoError(t, reg.StagedPredict(X, func(stage int, pred *mat.VecDense) bool {
				if stage == 9 {
					at10, err := reg.PredictIter(X, 10)
					require.NoError(t, err)
					assert.InDeltaSlice(t, at10.RawVector().Data, pred.RawVector().Data, 1e-9)
				}
				mse, err := metrics.MSE(y, pred)
				require.NoError(t, err)
				mses = append(mses, mse)
				return true
			}))
			require.Len(t, mses, 30)
			for i := 1; i < len(mses); i++ {
				assert.LessOrEqual(t, mses[i], mses[i-1]+1e-9, "stage %d", i)
			}
			assert.InDeltaSlice(t, reg.EvalHistory()["training_l2"], mses, 1e-9)
		})
	}
}

func TestFitEvalCurveMatchesStagedMSE(t *testing.T) {
	X, y := makeRegression(300, 4)
	Xe, ye := makeRegression(100, 5)

	lgbm := NewLGBMRegressor(WithNEstimators(20))
	curve, err := lgbm.FitEval(X, y, Xe, ye)
	require.NoError(t, err)
	require.Len(t, curve, 20)

	i := 0
	require.NoError(t, lgbm.StagedPredict(Xe, func(stage int, pred *mat.VecDense) bool {
		mse, err := metrics.MSE(ye, pred)
		require.NoError(t, err)
		assert.InDelta(t, curve[i], mse, 1e-9)
		i++
		return true
	}))
}

func TestEarlyStoppingOnNoise(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	noise := func(n int) (*mat.Dense, *mat.VecDense) {
		X := mat.NewDense(n, 2, nil)
		y := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			X.Set(i, 0, rng.Float64())
			X.Set(i, 1, rng.Float64())
			y.SetVec(i, rng.NormFloat64())
		}
		return X, y
	}
	X, y := noise(200)
	Xe, ye := noise(200)

	xgb := NewXGBRegressor(WithNEstimators(200), WithEarlyStopping(5))
	curve, err := xgb.FitEval(X, y, Xe, ye)
	require.NoError(t, err)
	assert.Less(t, len(curve), 200)

	best := xgb.Model().BestIteration
	require.Greater(t, best, 0)
	assert.Equal(t, len(curve)-5, best)
}

func TestSubsampleIsSeeded(t *testing.T) {
	X, y := makeRegression(200, 6)
	fit := func(seed uint64) []float64 {
		xgb := NewXGBRegressor(WithNEstimators(10), WithSubsample(0.5), WithRandomState(seed))
		require.NoError(t, xgb.Fit(X, y))
		pred, err := xgb.Predict(X)
		require.NoError(t, err)
		return pred.RawVector().Data
	}
	assert.Equal(t, fit(1), fit(1))
	assert.NotEqual(t, fit(1), fit(2))
}

func TestLGBMSubsampleNeedsFrequency(t *testing.T) {
	X, y := makeRegression(200, 7)
	fit := func(opts ...Option) []float64 {
		lgbm := NewLGBMRegressor(append([]Option{WithNEstimators(10)}, opts...)...)
		require.NoError(t, lgbm.Fit(X, y))
		pred, err := lgbm.Predict(X)
		require.NoError(t, err)
		return pred.RawVector().Data
	}
	full := fit()
	assert.Equal(t, full, fit(WithSubsample(0.5)))
	assert.NotEqual(t, full, fit(WithSubsample(0.5), WithSubsampleFreq(1)))
}

func TestLogEvaluationCallback(t *testing.T) {
	p, buf := log.NewTestLoggerProvider(log.LevelDebug)
	log.SetProvider(p)
	t.Cleanup(func() { require.NoError(t, log.SetupLogger(&mockWriter{}, "info", log.FormatConsole)) })

	X, y := makeRegression(100, 8)
	xgb := NewXGBRegressor(WithNEstimators(4), WithCallbacks(LogEvaluation(2)))
	require.NoError(t, xgb.Fit(X, y))

	entries, err := p.GetLoggerWithName("x").(*log.TestLogger).GetLogEntries()
	require.NoError(t, err)
	var evals int
	for _, e := range entries {
		if e["message"] == "Evaluation" {
			evals++
			assert.Contains(t, e, "training_l2")
		}
	}
	assert.Equal(t, 2, evals)
	assert.Contains(t, buf.String(), `"ml.component":"gbdt.eval"`)
}

func TestSplitSearchFailureIsReturned(t *testing.T) {
	rows := make([][]float64, 10)
	for i := range rows {
		rows[i] = []float64{float64(i), float64(10 - i)}
	}
	tr := NewTrainer(XGBoostParams())
	tr.data = binRows(rows, 16)
	// feature 1 has bins but no mapper
	tr.data.mappers = tr.data.mappers[:1]
	tr.grad = make([]float64, len(rows))
	tr.hess = make([]float64, len(rows))
	l := &leaf{indices: make([]int, len(rows))}
	for i := range rows {
		l.indices[i] = i
		tr.grad[i] = float64(i) - 4.5
		tr.hess[i] = 1
		l.sumGrad += tr.grad[i]
		l.sumHess += tr.hess[i]
	}

	split, err := tr.findBestSplit(l)
	require.Error(t, err)
	assert.Equal(t, -1, split.Feature)
	var pe *errors.PanicError
	assert.True(t, errors.As(err, &pe), "got %v", err)

	_, err = tr.buildTree(l.indices)
	assert.Error(t, err)
}

func TestRegressorErrors(t *testing.T) {
	xgb := NewXGBRegressor()
	_, err := xgb.Predict(mat.NewDense(1, 1, []float64{0}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	bad := NewLGBMRegressor(WithNumLeaves(1))
	err = bad.Fit(mat.NewDense(2, 1, []float64{0, 1}), mat.NewVecDense(2, []float64{0, 1}))
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	X, y := makeRegression(50, 9)
	require.NoError(t, xgb.Fit(X, y))
	_, err = xgb.Predict(mat.NewDense(1, 2, nil))
	assert.Error(t, err)
}

type mockWriter struct{}

func (mockWriter) Write(p []byte) (int, error) { return len(p), nil }
