package ensemble

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/core/parallel"
	"github.com/YuminosukeSato/bratbench/core/sampling"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
	"github.com/YuminosukeSato/bratbench/sklearn/tree"
)

// RandomForestRegressor averages fully grown trees fitted on bootstrap
// samples. Trees are fitted concurrently; each tree draws from its own
// stream derived from RandomState so results do not depend on scheduling.
type RandomForestRegressor struct {
	state *model.StateManager

	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	RandomState     uint64
	NJobs           int

	estimators_ []*tree.DecisionTreeRegressor
}

// RFOption configures a RandomForestRegressor.
type RFOption func(*RandomForestRegressor)

func WithRFNEstimators(n int) RFOption {
	return func(r *RandomForestRegressor) { r.NEstimators = n }
}

// WithRFMaxDepth limits tree depth; d <= 0 grows trees until leaves are pure.
func WithRFMaxDepth(d int) RFOption {
	return func(r *RandomForestRegressor) { r.MaxDepth = d }
}

func WithRFMaxFeatures(k int) RFOption {
	return func(r *RandomForestRegressor) { r.MaxFeatures = k }
}

func WithRFBootstrap(b bool) RFOption {
	return func(r *RandomForestRegressor) { r.Bootstrap = b }
}

func WithRFRandomState(seed uint64) RFOption {
	return func(r *RandomForestRegressor) { r.RandomState = seed }
}

// WithRFNJobs sets the number of fitting goroutines; n <= 0 uses every core.
func WithRFNJobs(n int) RFOption {
	return func(r *RandomForestRegressor) { r.NJobs = n }
}

// NewRandomForestRegressor uses 100 unlimited-depth trees on bootstrap samples.
func NewRandomForestRegressor(opts ...RFOption) *RandomForestRegressor {
	r := &RandomForestRegressor{
		state:           model.NewStateManager(),
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     42,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit grows the forest.
func (r *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if r.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", r.NEstimators)
	}
	n, p, target, err := model.CheckXY("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	rows := model.Rows(X)

	log.GetLoggerWithName("ensemble").Debug("Training started",
		log.ModelNameKey, "RF",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.StagesKey, r.NEstimators,
	)

	trees := make([]*tree.DecisionTreeRegressor, r.NEstimators)
	err = parallel.ForEach(r.NEstimators, r.NJobs, func(k int) error {
		rng := sampling.NewRand(sampling.DeriveSeed(r.RandomState, k))
		var idx []int
		if r.Bootstrap {
			idx = sampling.Bootstrap(rng, n)
		} else {
			idx = sampling.All(n)
		}
		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(r.MaxDepth),
			tree.WithMinSamplesSplit(r.MinSamplesSplit),
			tree.WithMinSamplesLeaf(r.MinSamplesLeaf),
			tree.WithMaxFeatures(r.MaxFeatures),
			tree.WithRand(rng),
		)
		if err := t.FitRows(rows, target, idx); err != nil {
			return errors.Wrapf(err, "tree %d", k)
		}
		trees[k] = t
		return nil
	})
	if err != nil {
		return err
	}

	r.estimators_ = trees
	r.state.SetDimensions(p, n)
	r.state.SetFitted()
	return nil
}

// EstimatorPredictions returns one prediction vector per tree.
func (r *RandomForestRegressor) EstimatorPredictions(X mat.Matrix) ([][]float64, error) {
	if err := r.state.CheckPredictInput("RandomForestRegressor", X); err != nil {
		return nil, err
	}
	rows := model.Rows(X)
	preds := make([][]float64, len(r.estimators_))
	parallel.ParallelizeN(len(r.estimators_), r.NJobs, func(start, end int) {
		for k := start; k < end; k++ {
			preds[k] = make([]float64, len(rows))
			r.estimators_[k].PredictRows(rows, preds[k])
		}
	})
	return preds, nil
}

// StagedPredict calls fn with the running mean of the first stage+1 trees.
func (r *RandomForestRegressor) StagedPredict(X mat.Matrix, fn func(stage int, pred *mat.VecDense) bool) error {
	preds, err := r.EstimatorPredictions(X)
	if err != nil {
		return err
	}
	n, _ := X.Dims()
	sum := make([]float64, n)
	pred := mat.NewVecDense(n, nil)
	raw := pred.RawVector().Data
	for k, p := range preds {
		for i, v := range p {
			sum[i] += v
			raw[i] = sum[i] / float64(k+1)
		}
		if !fn(k, pred) {
			return nil
		}
	}
	return nil
}

// Predict averages all trees.
func (r *RandomForestRegressor) Predict(X mat.Matrix) (*mat.VecDense, error) {
	var last *mat.VecDense
	err := r.StagedPredict(X, func(stage int, pred *mat.VecDense) bool {
		if stage == len(r.estimators_)-1 {
			last = mat.VecDenseCopyOf(pred)
		}
		return true
	})
	return last, err
}

// IsFitted reports whether Fit has succeeded.
func (r *RandomForestRegressor) IsFitted() bool { return r.state.IsFitted() }

// Estimators returns the fitted trees.
func (r *RandomForestRegressor) Estimators() []*tree.DecisionTreeRegressor { return r.estimators_ }

// GetParams returns the hyperparameters.
func (r *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators": r.NEstimators,
		"max_depth":    r.MaxDepth,
		"max_features": r.MaxFeatures,
		"bootstrap":    r.Bootstrap,
		"random_state": r.RandomState,
	}
}

func (r *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_depth=%d)", r.NEstimators, r.MaxDepth)
}
