// Package ensemble implements gradient boosted trees and random forests on
// top of sklearn/tree.
package ensemble

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/core/sampling"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
	"github.com/YuminosukeSato/bratbench/sklearn/tree"
)

// GradientBoostingRegressor fits shallow regression trees to squared-error
// residuals, starting from the mean of y.
type GradientBoostingRegressor struct {
	state *model.StateManager

	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	Subsample       float64
	MinSamplesSplit int
	MinSamplesLeaf  int
	RandomState     uint64

	init_       float64
	estimators_ []*tree.DecisionTreeRegressor
	trainScore_ []float64
}

// GBOption configures a GradientBoostingRegressor.
type GBOption func(*GradientBoostingRegressor)

func WithGBNEstimators(n int) GBOption {
	return func(g *GradientBoostingRegressor) { g.NEstimators = n }
}

func WithGBLearningRate(lr float64) GBOption {
	return func(g *GradientBoostingRegressor) { g.LearningRate = lr }
}

func WithGBMaxDepth(d int) GBOption {
	return func(g *GradientBoostingRegressor) { g.MaxDepth = d }
}

// WithGBSubsample fits each stage on a fraction of the rows drawn without
// replacement.
func WithGBSubsample(s float64) GBOption {
	return func(g *GradientBoostingRegressor) { g.Subsample = s }
}

func WithGBMinSamplesSplit(n int) GBOption {
	return func(g *GradientBoostingRegressor) { g.MinSamplesSplit = n }
}

func WithGBRandomState(seed uint64) GBOption {
	return func(g *GradientBoostingRegressor) { g.RandomState = seed }
}

// NewGradientBoostingRegressor uses 100 stages, learning rate 0.1 and depth 3.
func NewGradientBoostingRegressor(opts ...GBOption) *GradientBoostingRegressor {
	g := &GradientBoostingRegressor{
		state:           model.NewStateManager(),
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        3,
		Subsample:       1.0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     42,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GradientBoostingRegressor) validate() error {
	if g.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", g.NEstimators)
	}
	if g.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", g.LearningRate)
	}
	if g.Subsample <= 0 || g.Subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", g.Subsample)
	}
	return nil
}

// Fit grows NEstimators trees.
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	if err := g.validate(); err != nil {
		return err
	}
	n, p, target, err := model.CheckXY("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	rows := model.Rows(X)

	logger := log.GetLoggerWithName("ensemble").With(log.ModelNameKey, "GBT")
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.StagesKey, g.NEstimators,
	)

	rng := sampling.NewRand(g.RandomState)
	g.init_ = stat.Mean(target, nil)
	g.estimators_ = make([]*tree.DecisionTreeRegressor, 0, g.NEstimators)
	g.trainScore_ = make([]float64, 0, g.NEstimators)

	current := make([]float64, n)
	for i := range current {
		current[i] = g.init_
	}
	residual := make([]float64, n)
	stagePred := make([]float64, n)
	nInBag := sampling.FloorCount(g.Subsample, n)

	for stage := 0; stage < g.NEstimators; stage++ {
		for i := range residual {
			residual[i] = target[i] - current[i]
		}

		var idx []int
		if g.Subsample < 1 {
			idx = sampling.WithoutReplacement(rng, n, nInBag)
		} else {
			idx = sampling.All(n)
		}

		t := g.newTree(rng)
		if err := t.FitRows(rows, residual, idx); err != nil {
			return errors.Wrapf(err, "stage %d", stage)
		}
		t.PredictRows(rows, stagePred)

		var loss float64
		for i := range current {
			current[i] += g.LearningRate * stagePred[i]
			d := target[i] - current[i]
			loss += d * d
		}
		g.estimators_ = append(g.estimators_, t)
		g.trainScore_ = append(g.trainScore_, loss/float64(n))
	}

	logger.Debug("Training completed", log.LossKey, g.trainScore_[len(g.trainScore_)-1])
	g.state.SetDimensions(p, n)
	g.state.SetFitted()
	return nil
}

func (g *GradientBoostingRegressor) newTree(rng *rand.Rand) *tree.DecisionTreeRegressor {
	return tree.NewDecisionTreeRegressor(
		tree.WithMaxDepth(g.MaxDepth),
		tree.WithMinSamplesSplit(g.MinSamplesSplit),
		tree.WithMinSamplesLeaf(g.MinSamplesLeaf),
		tree.WithRand(rng),
	)
}

// Predict returns init + learning_rate * sum of stage predictions.
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (*mat.VecDense, error) {
	var last *mat.VecDense
	err := g.StagedPredict(X, func(stage int, pred *mat.VecDense) bool {
		if stage == len(g.estimators_)-1 {
			last = mat.VecDenseCopyOf(pred)
		}
		return true
	})
	return last, err
}

// StagedPredict calls fn with the prediction after each stage. pred is
// reused between calls.
func (g *GradientBoostingRegressor) StagedPredict(X mat.Matrix, fn func(stage int, pred *mat.VecDense) bool) error {
	if err := g.state.CheckPredictInput("GradientBoostingRegressor", X); err != nil {
		return err
	}
	rows := model.Rows(X)
	n := len(rows)
	pred := mat.NewVecDense(n, nil)
	raw := pred.RawVector().Data
	for i := range raw {
		raw[i] = g.init_
	}
	for stage, t := range g.estimators_ {
		for i, x := range rows {
			raw[i] += g.LearningRate * t.PredictRow(x)
		}
		if !fn(stage, pred) {
			return nil
		}
	}
	return nil
}

// IsFitted reports whether Fit has succeeded.
func (g *GradientBoostingRegressor) IsFitted() bool { return g.state.IsFitted() }

// Estimators returns the fitted stage trees.
func (g *GradientBoostingRegressor) Estimators() []*tree.DecisionTreeRegressor { return g.estimators_ }

// TrainScore returns the in-bag training MSE after each stage.
func (g *GradientBoostingRegressor) TrainScore() []float64 { return g.trainScore_ }

// GetParams returns the hyperparameters.
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      g.NEstimators,
		"learning_rate":     g.LearningRate,
		"max_depth":         g.MaxDepth,
		"subsample":         g.Subsample,
		"min_samples_split": g.MinSamplesSplit,
		"random_state":      g.RandomState,
	}
}

func (g *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(n_estimators=%d, learning_rate=%g, max_depth=%d, subsample=%g)",
		g.NEstimators, g.LearningRate, g.MaxDepth, g.Subsample)
}
