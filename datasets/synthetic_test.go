package datasets

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

func TestGenerateShapes(t *testing.T) {
	ds, err := Generate("friedman1", WithNTrain(100), WithNTest(10), WithSeed(0))
	require.NoError(t, err)

	r, c := ds.XTrain.Dims()
	assert.Equal(t, 100, r)
	assert.Equal(t, NumSyntheticFeatures, c)
	r, _ = ds.XTest.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 100, ds.YTrain.Len())
	assert.Equal(t, 10, ds.YTest.Len())
	assert.Equal(t, 10, ds.YTestTrue.Len())
	assert.Nil(t, ds.XCal)
	assert.Nil(t, ds.YCal)
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, err := Generate("radial", WithNTrain(50), WithNTest(20), WithNCalibration(5), WithSeed(7))
	require.NoError(t, err)
	b, err := Generate("radial", WithNTrain(50), WithNTest(20), WithNCalibration(5), WithSeed(7))
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.XTrain, b.XTrain))
	assert.True(t, mat.Equal(a.YTrain, b.YTrain))
	assert.True(t, mat.Equal(a.XCal, b.XCal))
	assert.True(t, mat.Equal(a.YCal, b.YCal))

	c, err := Generate("radial", WithNTrain(50), WithNTest(20), WithSeed(8))
	require.NoError(t, err)
	assert.False(t, mat.Equal(a.XTrain, c.XTrain))
}

func TestCalibrationDrawsDoNotShiftTrainTest(t *testing.T) {
	plain, err := Generate("linear", WithNTrain(30), WithNTest(10), WithSeed(3))
	require.NoError(t, err)
	withCal, err := Generate("linear", WithNTrain(30), WithNTest(10), WithNCalibration(15), WithSeed(3))
	require.NoError(t, err)

	assert.True(t, mat.Equal(plain.XTrain, withCal.XTrain))
	assert.True(t, mat.Equal(plain.YTest, withCal.YTest))
	r, _ := withCal.XCal.Dims()
	assert.Equal(t, 15, r)
}

func TestGenerateNoiseFree(t *testing.T) {
	ds, err := Generate("constant", WithNTrain(20), WithNTest(5), WithNoiseStd(0))
	require.NoError(t, err)
	for i := 0; i < ds.YTrain.Len(); i++ {
		assert.Equal(t, 5.0, ds.YTrain.AtVec(i))
	}
	assert.True(t, mat.Equal(ds.YTest, ds.YTestTrue))
}

func TestGenerateFeatureDistribution(t *testing.T) {
	ds, err := Generate("linear", WithNTrain(20000), WithNTest(1))
	require.NoError(t, err)
	col := mat.Col(nil, 0, ds.XTrain)
	mean, std := stat.MeanStdDev(col, nil)
	assert.InDelta(t, 0, mean, 0.02)
	assert.InDelta(t, featureSigma, std, 0.02)
}

func TestTargetFunctions(t *testing.T) {
	x := []float64{0.6, 0.5, 0.5, 0.25, 1, 0.5, 0.5}
	tests := []struct {
		name string
		want float64
	}{
		{"friedman1", 10*math.Sin(math.Pi*0.3) + 5},
		{"linear", 2*0.6 - 3*0.5 + 1.5*0.5},
		{"constant", 5},
		{"stepwise", 10},
		{"sigmoid", 1 / (1 + math.Exp(-0.6))},
		{"mild_sine", math.Sin(2*math.Pi*0.6) + 0.5*0.36},
		{"smooth_linear", 3*0.6 + 2*0.5 - 0.5 + 0.5*math.Sin(math.Pi/2) + 0.3},
		{"radial", math.Exp(-(0.01 + 0.0625 + 0.25))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := LookupFunction(tt.name)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, f(x), 1e-12)
		})
	}

	f, err := LookupFunction("stepwise")
	require.NoError(t, err)
	assert.Equal(t, -10.0, f([]float64{0.5, 0, 0, 0, 0, 0, 0}))
}

func TestUnknownFunctionListsNames(t *testing.T) {
	_, err := Generate("cubic")
	require.Error(t, err)

	var ve *errors.ValueError
	require.True(t, errors.As(err, &ve))
	for _, name := range FunctionNames {
		assert.Contains(t, err.Error(), name)
	}
}
