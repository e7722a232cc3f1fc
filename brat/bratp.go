package brat

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

// Group is the average of trees fitted to the same residual.
type Group []*tree.DecisionTreeRegressor

// PredictRow returns the mean tree prediction.
func (g Group) PredictRow(x []float64) float64 {
	var s float64
	for _, t := range g {
		s += t.PredictRow(x)
	}
	return s / float64(len(g))
}

// BRATP is Boulevard boosting where each round fits NTreesPerGroup trees
// concurrently on independent subsamples and uses their average.
type BRATP struct {
	state *model.StateManager

	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	NTreesPerGroup  int
	MinSamplesSplit int
	SubsampleRate   float64
	RandomState     uint64
	NJobs           int

	groups_    []Group
	evalCurve_ []float64
}

// POption configures a BRATP.
type POption func(*BRATP)

func WithPNEstimators(n int) POption {
	return func(m *BRATP) { m.NEstimators = n }
}

func WithPLearningRate(lr float64) POption {
	return func(m *BRATP) { m.LearningRate = lr }
}

func WithPMaxDepth(d int) POption {
	return func(m *BRATP) { m.MaxDepth = d }
}

func WithNTreesPerGroup(k int) POption {
	return func(m *BRATP) { m.NTreesPerGroup = k }
}

func WithPMinSamplesSplit(n int) POption {
	return func(m *BRATP) { m.MinSamplesSplit = n }
}

func WithPSubsampleRate(r float64) POption {
	return func(m *BRATP) { m.SubsampleRate = r }
}

func WithPRandomState(seed uint64) POption {
	return func(m *BRATP) { m.RandomState = seed }
}

// WithPNJobs sets the goroutines per group; n <= 0 uses every core.
func WithPNJobs(n int) POption {
	return func(m *BRATP) { m.NJobs = n }
}

// NewBRATP uses 100 rounds of 10 trees, learning rate 1, depth 3 and
// subsample rate 0.8.
func NewBRATP(opts ...POption) *BRATP {
	m := &BRATP{
		state:           model.NewStateManager(),
		NEstimators:     100,
		LearningRate:    1.0,
		MaxDepth:        3,
		NTreesPerGroup:  10,
		MinSamplesSplit: 2,
		SubsampleRate:   0.8,
		RandomState:     42,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fit trains without an evaluation set.
func (m *BRATP) Fit(X, y mat.Matrix) error {
	_, err := m.fit(X, y, nil, nil)
	return err
}

// FitEval trains and returns the MSE on (XEval, yEval) after every round.
func (m *BRATP) FitEval(X, y, XEval, yEval mat.Matrix) ([]float64, error) {
	return m.fit(X, y, XEval, yEval)
}

func (m *BRATP) fit(X, y, XEval, yEval mat.Matrix) (curve []float64, err error) {
	defer errors.Recover(&err, "BRATP.Fit")

	if err := validateCommon(m.NEstimators, m.LearningRate, m.SubsampleRate, 0); err != nil {
		return nil, err
	}
	if m.NTreesPerGroup < 1 {
		return nil, errors.NewValidationError("n_trees_per_group", "must be at least 1", m.NTreesPerGroup)
	}
	n, p, target, err := model.CheckXY("BRATP.Fit", X, y)
	if err != nil {
		return nil, err
	}
	evalRows, evalTarget, err := evalData("BRATP.Fit", p, XEval, yEval)
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("brat").With(log.ModelNameKey, "BRATP")
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.StagesKey, m.NEstimators,
		"n_trees_per_group", m.NTreesPerGroup,
	)

	rows := model.Rows(X)
	nSub := sampling.CeilCount(m.SubsampleRate, n)
	groups := make([]Group, 0, m.NEstimators)

	b := &boulevard{
		rounds:       m.NEstimators,
		learningRate: m.LearningRate,
		logger:       logger,
	}
	res, err := b.fit(rows, target, evalRows, evalTarget, func(round int, residual []float64) (member, error) {
		g := make(Group, m.NTreesPerGroup)
		err := parallel.ForEach(m.NTreesPerGroup, m.NJobs, func(k int) error {
			rng := sampling.NewRand(sampling.DeriveSeed(m.RandomState, round*m.NTreesPerGroup+k))
			idx := sampling.WithoutReplacement(rng, n, nSub)
			t := tree.NewDecisionTreeRegressor(
				tree.WithMaxDepth(m.MaxDepth),
				tree.WithMinSamplesSplit(m.MinSamplesSplit),
				tree.WithRand(rng),
			)
			if err := t.FitRows(rows, residual, idx); err != nil {
				return errors.Wrapf(err, "tree %d", k)
			}
			g[k] = t
			return nil
		})
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
		return g, nil
	})
	if err != nil {
		return nil, err
	}

	m.groups_ = groups
	m.evalCurve_ = res.curve
	m.state.SetDimensions(p, n)
	m.state.SetFitted()
	return res.curve, nil
}

func (m *BRATP) members() []member {
	out := make([]member, len(m.groups_))
	for i, g := range m.groups_ {
		out[i] = g
	}
	return out
}

// Predict returns (1+LearningRate)·mean of all group predictions.
func (m *BRATP) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if err := m.state.CheckPredictInput("BRATP", X); err != nil {
		return nil, err
	}
	return mat.NewVecDense(rowsOf(X), predictRows(m.members(), m.LearningRate, model.Rows(X))), nil
}

// StagedPredict calls fn with the prediction after each group.
func (m *BRATP) StagedPredict(X mat.Matrix, fn func(stage int, pred *mat.VecDense) bool) error {
	if err := m.state.CheckPredictInput("BRATP", X); err != nil {
		return err
	}
	stagedPredict(m.members(), m.LearningRate, model.Rows(X), fn)
	return nil
}

// IsFitted reports whether Fit has succeeded.
func (m *BRATP) IsFitted() bool { return m.state.IsFitted() }

// Groups returns the fitted groups in round order.
func (m *BRATP) Groups() []Group { return m.groups_ }

// EvalCurve returns the per-round evaluation MSE of the last FitEval.
func (m *BRATP) EvalCurve() []float64 { return m.evalCurve_ }

// GetParams returns the hyperparameters.
func (m *BRATP) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      m.NEstimators,
		"learning_rate":     m.LearningRate,
		"max_depth":         m.MaxDepth,
		"n_trees_per_group": m.NTreesPerGroup,
		"min_samples_split": m.MinSamplesSplit,
		"subsample_rate":    m.SubsampleRate,
		"random_state":      m.RandomState,
	}
}

func (m *BRATP) String() string {
	return fmt.Sprintf("BRATP(n_estimators=%d, learning_rate=%g, max_depth=%d, n_trees_per_group=%d, subsample_rate=%g)",
		m.NEstimators, m.LearningRate, m.MaxDepth, m.NTreesPerGroup, m.SubsampleRate)
}
