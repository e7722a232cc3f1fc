package gbdt

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

// Regressor wraps Trainer and Model behind the estimator interfaces. Use
// NewXGBRegressor or NewLGBMRegressor to get the respective defaults.
type Regressor struct {
	state *model.StateManager

	name                string
	Params              TrainingParams
	EarlyStoppingRounds int
	Callbacks           []Callback

	model_       *Model
	evalHistory_ map[string][]float64
}

// Option configures a Regressor.
type Option func(*Regressor)

func WithNEstimators(n int) Option {
	return func(r *Regressor) { r.Params.NumIterations = n }
}

func WithLearningRate(lr float64) Option {
	return func(r *Regressor) { r.Params.LearningRate = lr }
}

// WithMaxDepth limits tree depth; values <= 0 mean unlimited.
func WithMaxDepth(d int) Option {
	return func(r *Regressor) { r.Params.MaxDepth = d }
}

func WithNumLeaves(n int) Option {
	return func(r *Regressor) { r.Params.NumLeaves = n }
}

func WithMinChildWeight(w float64) Option {
	return func(r *Regressor) { r.Params.MinSumHessianInLeaf = w }
}

func WithMinChildSamples(n int) Option {
	return func(r *Regressor) { r.Params.MinDataInLeaf = n }
}

// WithSubsample sets the row fraction per bagging round. For the LightGBM
// flavour it only takes effect together with WithSubsampleFreq.
func WithSubsample(f float64) Option {
	return func(r *Regressor) { r.Params.BaggingFraction = f }
}

func WithSubsampleFreq(k int) Option {
	return func(r *Regressor) { r.Params.BaggingFreq = k }
}

func WithRegLambda(l float64) Option {
	return func(r *Regressor) { r.Params.Lambda = l }
}

func WithMaxBin(b int) Option {
	return func(r *Regressor) { r.Params.MaxBin = b }
}

func WithRandomState(seed uint64) Option {
	return func(r *Regressor) { r.Params.Seed = seed }
}

// WithEarlyStopping stops FitEval once the evaluation MSE has not improved
// for rounds iterations.
func WithEarlyStopping(rounds int) Option {
	return func(r *Regressor) { r.EarlyStoppingRounds = rounds }
}

func WithCallbacks(cbs ...Callback) Option {
	return func(r *Regressor) { r.Callbacks = append(r.Callbacks, cbs...) }
}

// NewXGBRegressor grows depth-wise trees with learning rate 0.3, depth 6
// and L2 regularisation 1.
func NewXGBRegressor(opts ...Option) *Regressor {
	return newRegressor("XGBoost", XGBoostParams(), opts)
}

// NewLGBMRegressor grows leaf-wise trees with 31 leaves, learning rate 0.1
// and at least 20 samples per leaf.
func NewLGBMRegressor(opts ...Option) *Regressor {
	return newRegressor("LightGBM", LightGBMParams(), opts)
}

func newRegressor(name string, params TrainingParams, opts []Option) *Regressor {
	r := &Regressor{state: model.NewStateManager(), name: name, Params: params}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit trains on X and y.
func (r *Regressor) Fit(X, y mat.Matrix) error {
	_, err := r.fit(X, y, nil, nil)
	return err
}

// FitEval trains while tracking the MSE on XEval after every iteration and
// returns that curve.
func (r *Regressor) FitEval(X, y, XEval, yEval mat.Matrix) ([]float64, error) {
	return r.fit(X, y, XEval, yEval)
}

func (r *Regressor) fit(X, y, XEval, yEval mat.Matrix) (curve []float64, err error) {
	op := r.name + ".Fit"
	n, p, target, err := model.CheckXY(op, X, y)
	if err != nil {
		return nil, err
	}

	history := make(map[string][]float64)
	cbs := append([]Callback{RecordEvaluation(history)}, r.Callbacks...)

	trainer := NewTrainer(r.Params)
	if XEval != nil {
		_, pe, evalTarget, err := model.CheckXY(op, XEval, yEval)
		if err != nil {
			return nil, err
		}
		if pe != p {
			return nil, errors.NewDimensionError(op, p, pe, 1)
		}
		trainer.AddValidation("valid", model.Rows(XEval), evalTarget)
		if r.EarlyStoppingRounds > 0 {
			cbs = append(cbs, EarlyStopping(r.EarlyStoppingRounds, "valid_l2"))
		}
	}
	trainer.callbacks = NewCallbackList(cbs...)

	if err := trainer.Fit(model.Rows(X), target); err != nil {
		return nil, err
	}

	r.model_ = trainer.GetModel()
	r.evalHistory_ = history
	r.state.SetDimensions(p, n)
	r.state.SetFitted()
	return history["valid_l2"], nil
}

// Predict uses all trees, or the best iteration when early stopping fired.
func (r *Regressor) Predict(X mat.Matrix) (*mat.VecDense, error) {
	return r.PredictIter(X, 0)
}

// PredictIter uses only the first numIteration trees. numIteration <= 0
// selects the best iteration if known and all trees otherwise.
func (r *Regressor) PredictIter(X mat.Matrix, numIteration int) (*mat.VecDense, error) {
	if err := r.state.CheckPredictInput(r.name, X); err != nil {
		return nil, err
	}
	if numIteration <= 0 {
		numIteration = r.model_.BestIteration
	}
	return r.model_.PredictRows(model.Rows(X), numIteration), nil
}

// StagedPredict calls fn with the prediction after each tree.
func (r *Regressor) StagedPredict(X mat.Matrix, fn func(stage int, pred *mat.VecDense) bool) error {
	if err := r.state.CheckPredictInput(r.name, X); err != nil {
		return err
	}
	r.model_.StagedPredictRows(model.Rows(X), fn)
	return nil
}

// IsFitted reports whether Fit has succeeded.
func (r *Regressor) IsFitted() bool { return r.state.IsFitted() }

// Model returns the trained booster.
func (r *Regressor) Model() *Model { return r.model_ }

// EvalHistory returns the per-iteration metrics of the last fit.
func (r *Regressor) EvalHistory() map[string][]float64 { return r.evalHistory_ }

// GetParams returns the hyperparameters.
func (r *Regressor) GetParams() map[string]interface{} {
	p := r.Params
	params := map[string]interface{}{
		"n_estimators":  p.NumIterations,
		"learning_rate": p.LearningRate,
		"max_depth":     p.MaxDepth,
		"reg_lambda":    p.Lambda,
		"subsample":     p.BaggingFraction,
		"max_bin":       p.MaxBin,
		"random_state":  p.Seed,
	}
	if p.GrowPolicy == LeafWise {
		params["num_leaves"] = p.NumLeaves
		params["min_child_samples"] = p.MinDataInLeaf
		params["subsample_freq"] = p.BaggingFreq
	} else {
		params["min_child_weight"] = p.MinSumHessianInLeaf
	}
	return params
}

func (r *Regressor) String() string {
	return fmt.Sprintf("%s(n_estimators=%d, learning_rate=%g, max_depth=%d, grow_policy=%s)",
		r.name, r.Params.NumIterations, r.Params.LearningRate, r.Params.MaxDepth, r.Params.GrowPolicy)
}
