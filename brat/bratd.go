package brat

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/core/sampling"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
	"github.com/YuminosukeSato/bratbench/sklearn/tree"
)

// BRATD is Boulevard boosting with tree dropout. In round b each earlier
// tree is kept with probability 1-DropoutRate, the new tree is fitted to
// y - LearningRate·mean(kept trees) on a subsample of
// ceil(SubsampleRate·n) rows, and the model predicts
// (1+LearningRate)·mean(all trees).
type BRATD struct {
	state *model.StateManager

	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	DropoutRate     float64
	MinSamplesSplit int
	SubsampleRate   float64
	RandomState     uint64

	name        string
	estimators_ []*tree.DecisionTreeRegressor
	evalCurve_  []float64
}

// Option configures a BRATD.
type Option func(*BRATD)

func WithNEstimators(n int) Option {
	return func(m *BRATD) { m.NEstimators = n }
}

func WithLearningRate(lr float64) Option {
	return func(m *BRATD) { m.LearningRate = lr }
}

func WithMaxDepth(d int) Option {
	return func(m *BRATD) { m.MaxDepth = d }
}

func WithDropoutRate(r float64) Option {
	return func(m *BRATD) { m.DropoutRate = r }
}

func WithMinSamplesSplit(n int) Option {
	return func(m *BRATD) { m.MinSamplesSplit = n }
}

func WithSubsampleRate(r float64) Option {
	return func(m *BRATD) { m.SubsampleRate = r }
}

func WithRandomState(seed uint64) Option {
	return func(m *BRATD) { m.RandomState = seed }
}

// NewBRATD uses 100 rounds, learning rate 1, depth 3, dropout 0.1 and
// subsample rate 0.8.
func NewBRATD(opts ...Option) *BRATD {
	m := &BRATD{
		state:           model.NewStateManager(),
		NEstimators:     100,
		LearningRate:    1.0,
		MaxDepth:        3,
		DropoutRate:     0.1,
		MinSamplesSplit: 2,
		SubsampleRate:   0.8,
		RandomState:     42,
		name:            "BRATD",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewBoulevard is BRATD with DropoutRate fixed at 0.
func NewBoulevard(opts ...Option) *BRATD {
	m := NewBRATD(opts...)
	m.DropoutRate = 0
	m.name = "Boulevard"
	return m
}

func (m *BRATD) validate() error {
	return validateCommon(m.NEstimators, m.LearningRate, m.SubsampleRate, m.DropoutRate)
}

func validateCommon(nEstimators int, learningRate, subsampleRate, dropoutRate float64) error {
	switch {
	case nEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", nEstimators)
	case learningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", learningRate)
	case subsampleRate <= 0 || subsampleRate > 1:
		return errors.NewValidationError("subsample_rate", "must be in (0, 1]", subsampleRate)
	case dropoutRate < 0 || dropoutRate >= 1:
		return errors.NewValidationError("dropout_rate", "must be in [0, 1)", dropoutRate)
	}
	return nil
}

// Fit trains without an evaluation set.
func (m *BRATD) Fit(X, y mat.Matrix) error {
	_, err := m.fit(X, y, nil, nil)
	return err
}

// FitEval trains and returns the MSE on (XEval, yEval) after every round.
func (m *BRATD) FitEval(X, y, XEval, yEval mat.Matrix) ([]float64, error) {
	return m.fit(X, y, XEval, yEval)
}

func (m *BRATD) fit(X, y, XEval, yEval mat.Matrix) (curve []float64, err error) {
	op := m.name + ".Fit"
	defer errors.Recover(&err, op)

	if err := m.validate(); err != nil {
		return nil, err
	}
	n, p, target, err := model.CheckXY(op, X, y)
	if err != nil {
		return nil, err
	}
	evalRows, evalTarget, err := evalData(op, p, XEval, yEval)
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("brat").With(log.ModelNameKey, m.name)
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.StagesKey, m.NEstimators,
	)

	rng := sampling.NewRand(m.RandomState)
	rows := model.Rows(X)
	nSub := sampling.CeilCount(m.SubsampleRate, n)
	trees := make([]*tree.DecisionTreeRegressor, 0, m.NEstimators)

	b := &boulevard{
		rounds:       m.NEstimators,
		learningRate: m.LearningRate,
		dropoutRate:  m.DropoutRate,
		rng:          rng,
		logger:       logger,
	}
	res, err := b.fit(rows, target, evalRows, evalTarget, func(round int, residual []float64) (member, error) {
		idx := sampling.WithoutReplacement(rng, n, nSub)
		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(m.MaxDepth),
			tree.WithMinSamplesSplit(m.MinSamplesSplit),
			tree.WithRand(rng),
		)
		if err := t.FitRows(rows, residual, idx); err != nil {
			return nil, err
		}
		trees = append(trees, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	m.estimators_ = trees
	m.evalCurve_ = res.curve
	if len(res.curve) > 0 {
		logger.Debug("Training completed", log.MSEKey, res.curve[len(res.curve)-1])
	}
	m.state.SetDimensions(p, n)
	m.state.SetFitted()
	return res.curve, nil
}

// Predict returns (1+LearningRate)·mean of all tree predictions.
func (m *BRATD) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if err := m.state.CheckPredictInput(m.name, X); err != nil {
		return nil, err
	}
	members := make([]member, len(m.estimators_))
	for i, t := range m.estimators_ {
		members[i] = t
	}
	return mat.NewVecDense(rowsOf(X), predictRows(members, m.LearningRate, model.Rows(X))), nil
}

// StagedPredict calls fn with the prediction after each round.
func (m *BRATD) StagedPredict(X mat.Matrix, fn func(stage int, pred *mat.VecDense) bool) error {
	if err := m.state.CheckPredictInput(m.name, X); err != nil {
		return err
	}
	members := make([]member, len(m.estimators_))
	for i, t := range m.estimators_ {
		members[i] = t
	}
	stagedPredict(members, m.LearningRate, model.Rows(X), fn)
	return nil
}

// IsFitted reports whether Fit has succeeded.
func (m *BRATD) IsFitted() bool { return m.state.IsFitted() }

// Estimators returns the fitted trees in round order.
func (m *BRATD) Estimators() []*tree.DecisionTreeRegressor { return m.estimators_ }

// EvalCurve returns the per-round evaluation MSE of the last FitEval.
func (m *BRATD) EvalCurve() []float64 { return m.evalCurve_ }

// GetParams returns the hyperparameters.
func (m *BRATD) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"n_estimators":      m.NEstimators,
		"learning_rate":     m.LearningRate,
		"max_depth":         m.MaxDepth,
		"min_samples_split": m.MinSamplesSplit,
		"subsample_rate":    m.SubsampleRate,
		"random_state":      m.RandomState,
	}
	if m.name != "Boulevard" {
		params["dropout_rate"] = m.DropoutRate
	}
	return params
}

func (m *BRATD) String() string {
	return fmt.Sprintf("%s(n_estimators=%d, learning_rate=%g, max_depth=%d, dropout_rate=%g, subsample_rate=%g)",
		m.name, m.NEstimators, m.LearningRate, m.MaxDepth, m.DropoutRate, m.SubsampleRate)
}

func evalData(op string, p int, XEval, yEval mat.Matrix) ([][]float64, []float64, error) {
	if XEval == nil {
		return nil, nil, nil
	}
	_, pe, target, err := model.CheckXY(op, XEval, yEval)
	if err != nil {
		return nil, nil, err
	}
	if pe != p {
		return nil, nil, errors.NewDimensionError(op, p, pe, 1)
	}
	return model.Rows(XEval), target, nil
}

func rowsOf(X mat.Matrix) int {
	r, _ := X.Dims()
	return r
}

func stagedPredict(members []member, learningRate float64, rows [][]float64, fn func(stage int, pred *mat.VecDense) bool) {
	sum := make([]float64, len(rows))
	pred := mat.NewVecDense(len(rows), nil)
	raw := pred.RawVector().Data
	for stage, mem := range members {
		scale := (1 + learningRate) / float64(stage+1)
		for i, r := range rows {
			sum[i] += mem.PredictRow(r)
			raw[i] = scale * sum[i]
		}
		if !fn(stage, pred) {
			return
		}
	}
}
