// Package datasets provides the data sources of an experiment: seeded
// synthetic regression problems and cleaned UCI repository datasets.
package datasets

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
)

// NumSyntheticFeatures is the width of every synthetic design matrix.
const NumSyntheticFeatures = 7

// featureSigma is the standard deviation of the synthetic features.
const featureSigma = 0.5

// TargetFunc maps one feature row to its noise-free target.
type TargetFunc func(x []float64) float64

func friedman1(x []float64) float64 {
	return 10*math.Sin(math.Pi*x[0]*x[1]) + 20*(x[2]-0.5)*(x[2]-0.5) + 0*x[3] + 5*x[4]
}

var targetFuncs = map[string]TargetFunc{
	"friedman1": friedman1,
	"friedman2": func(x []float64) float64 {
		inner := x[1]*x[2] - 1/(x[1]*x[3]+1e-6)
		return math.Sqrt(x[0]*x[0] + inner*inner)
	},
	"radial": func(x []float64) float64 {
		var s float64
		for _, v := range x {
			s += (v - 0.5) * (v - 0.5)
		}
		return math.Exp(-s)
	},
	"smooth_linear": func(x []float64) float64 {
		return 3*x[0] + 2*x[1] - x[2] + 0.5*math.Sin(2*math.Pi*x[3]) + 0.3*x[4]*x[4]
	},
	"linear": func(x []float64) float64 {
		return 2*x[0] - 3*x[1] + 1.5*x[2]
	},
	"constant": func([]float64) float64 { return 5 },
	"stepwise": func(x []float64) float64 {
		if x[0] > 0.5 {
			return 10
		}
		return -10
	},
	"sigmoid": func(x []float64) float64 {
		return 1 / (1 + math.Exp(-x[0]))
	},
	"mild_sine": func(x []float64) float64 {
		return math.Sin(2*math.Pi*x[0]) + 0.5*x[0]*x[0]
	},
	"sigmoid_friedman": func(x []float64) float64 {
		return 1 / (1 + math.Exp(-(friedman1(x)-10)/3))
	},
}

// FunctionNames lists the supported synthetic targets.
var FunctionNames = []string{
	"friedman1", "friedman2", "radial", "smooth_linear", "linear",
	"constant", "stepwise", "sigmoid", "mild_sine", "sigmoid_friedman",
}

// LookupFunction returns the target function registered under name.
func LookupFunction(name string) (TargetFunc, error) {
	f, ok := targetFuncs[name]
	if !ok {
		return nil, errors.NewValueError("datasets.Generate",
			fmt.Sprintf("unknown function type %q. Choose one of: %s", name, strings.Join(FunctionNames, ", ")))
	}
	return f, nil
}

// Dataset is a train/test split. XCal and YCal are nil unless a calibration
// set was requested.
type Dataset struct {
	XTrain    *mat.Dense
	YTrain    *mat.VecDense
	XTest     *mat.Dense
	YTest     *mat.VecDense
	YTestTrue *mat.VecDense
	XCal      *mat.Dense
	YCal      *mat.VecDense
}

// SyntheticConfig configures Generate.
type SyntheticConfig struct {
	NTrain       int
	NTest        int
	NCalibration int
	NoiseStd     float64
	Seed         uint64
}

// SyntheticOption mutates a SyntheticConfig.
type SyntheticOption func(*SyntheticConfig)

// WithNTrain sets the number of training rows.
func WithNTrain(n int) SyntheticOption { return func(c *SyntheticConfig) { c.NTrain = n } }

// WithNTest sets the number of test rows.
func WithNTest(n int) SyntheticOption { return func(c *SyntheticConfig) { c.NTest = n } }

// WithNCalibration requests a calibration set of n rows.
func WithNCalibration(n int) SyntheticOption {
	return func(c *SyntheticConfig) { c.NCalibration = n }
}

// WithNoiseStd sets the standard deviation of the additive target noise.
func WithNoiseStd(s float64) SyntheticOption { return func(c *SyntheticConfig) { c.NoiseStd = s } }

// WithSeed sets the random seed.
func WithSeed(seed uint64) SyntheticOption { return func(c *SyntheticConfig) { c.Seed = seed } }

// DefaultSyntheticConfig returns 5000 train rows, 1000 test rows, unit noise
// and seed 2.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{NTrain: 5000, NTest: 1000, NoiseStd: 1, Seed: 2}
}

// Generate draws a synthetic regression problem. Features are i.i.d.
// Normal(0, 0.5); targets are f(X) plus Normal(0, NoiseStd) noise, and
// YTestTrue is the noise-free f(XTest). Draws happen in a fixed order
// (train X, test X, train noise, test noise, calibration X, calibration
// noise) so equal seeds give identical data.
func Generate(function string, opts ...SyntheticOption) (*Dataset, error) {
	cfg := DefaultSyntheticConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return GenerateWithConfig(function, cfg)
}

// GenerateWithConfig is Generate with an explicit configuration.
func GenerateWithConfig(function string, cfg SyntheticConfig) (*Dataset, error) {
	f, err := LookupFunction(function)
	if err != nil {
		return nil, err
	}
	if cfg.NTrain <= 0 || cfg.NTest <= 0 {
		return nil, errors.NewValidationError("n_train/n_test", "must be positive", [2]int{cfg.NTrain, cfg.NTest})
	}
	if cfg.NCalibration < 0 {
		return nil, errors.NewValidationError("n_calibration", "must not be negative", cfg.NCalibration)
	}
	if cfg.NoiseStd < 0 {
		return nil, errors.NewValidationError("noise_std", "must not be negative", cfg.NoiseStd)
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed)
	features := distuv.Normal{Mu: 0, Sigma: featureSigma, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: cfg.NoiseStd, Src: src}

	ds := &Dataset{}
	ds.XTrain = drawFeatures(features, cfg.NTrain)
	ds.XTest = drawFeatures(features, cfg.NTest)

	trainTrue := evaluate(f, ds.XTrain)
	ds.YTestTrue = evaluate(f, ds.XTest)
	ds.YTrain = addNoise(noise, trainTrue)
	ds.YTest = addNoise(noise, ds.YTestTrue)

	if cfg.NCalibration > 0 {
		ds.XCal = drawFeatures(features, cfg.NCalibration)
		ds.YCal = addNoise(noise, evaluate(f, ds.XCal))
	}

	log.GetLoggerWithName("datasets").Debug("Synthetic data generated",
		log.FunctionKey, function,
		log.SamplesKey, cfg.NTrain,
		log.FeaturesKey, NumSyntheticFeatures,
		log.RandomSeedKey, cfg.Seed,
	)
	return ds, nil
}

func drawFeatures(dist distuv.Normal, n int) *mat.Dense {
	data := make([]float64, n*NumSyntheticFeatures)
	for i := range data {
		data[i] = dist.Rand()
	}
	return mat.NewDense(n, NumSyntheticFeatures, data)
}

func evaluate(f TargetFunc, X *mat.Dense) *mat.VecDense {
	n, _ := X.Dims()
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		y.SetVec(i, f(X.RawRowView(i)))
	}
	return y
}

func addNoise(dist distuv.Normal, clean *mat.VecDense) *mat.VecDense {
	n := clean.Len()
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		y.SetVec(i, clean.AtVec(i)+dist.Rand())
	}
	return y
}
