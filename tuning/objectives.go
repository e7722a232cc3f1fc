// Package tuning searches hyperparameters with goptuna's TPE sampler.
package tuning

import (
	"github.com/c-bata/goptuna"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/core/sampling"
	"github.com/YuminosukeSato/bratbench/metrics"
	"github.com/YuminosukeSato/bratbench/models"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

// SubsampleFraction of the training rows is used by every objective.
const SubsampleFraction = 0.1

// Objective scores one trial; lower is better.
type Objective = func(trial goptuna.Trial) (float64, error)

// space draws one configuration for a family.
type space func(trial goptuna.Trial, epoch int) (models.Params, error)

// suggester records the first error of a sequence of suggestions.
type suggester struct {
	trial  goptuna.Trial
	params models.Params
	err    error
}

func (s *suggester) logFloat(name string, lo, hi float64) {
	if s.err != nil {
		return
	}
	s.params[name], s.err = s.trial.SuggestLogFloat(name, lo, hi)
}

func (s *suggester) float(name string, lo, hi float64) {
	if s.err != nil {
		return
	}
	s.params[name], s.err = s.trial.SuggestFloat(name, lo, hi)
}

func (s *suggester) int(name string, lo, hi int) {
	if s.err != nil {
		return
	}
	s.params[name], s.err = s.trial.SuggestInt(name, lo, hi)
}

func newSuggester(trial goptuna.Trial) *suggester {
	return &suggester{trial: trial, params: models.Params{}}
}

func boostingSpace(trial goptuna.Trial, epoch int) (models.Params, error) {
	s := newSuggester(trial)
	s.logFloat("learning_rate", 0.01, 0.3)
	s.int("max_depth", 3, 10)
	s.float("subsample", 0.6, 1.0)
	s.params["n_estimators"] = epoch
	return s.params, s.err
}

var spaces = map[string]space{
	models.GBT:      boostingSpace,
	models.XGBoost:  boostingSpace,
	models.LightGBM: boostingSpace,
	models.RF: func(trial goptuna.Trial, epoch int) (models.Params, error) {
		s := newSuggester(trial)
		s.int("max_depth", 3, 20)
		s.params["n_estimators"] = epoch
		return s.params, s.err
	},
	models.ElasticNet: func(trial goptuna.Trial, _ int) (models.Params, error) {
		s := newSuggester(trial)
		s.logFloat("alpha", 0.001, 10.0)
		s.float("l1_ratio", 0.0, 1.0)
		return s.params, s.err
	},
	models.GAM: func(trial goptuna.Trial, _ int) (models.Params, error) {
		s := newSuggester(trial)
		s.logFloat("lam", 0.01, 10.0)
		s.int("n_splines", 5, 25)
		return s.params, s.err
	},
	models.BRATD: func(trial goptuna.Trial, epoch int) (models.Params, error) {
		s := newSuggester(trial)
		s.logFloat("learning_rate", 0.01, 1.0)
		s.int("max_depth", 3, 15)
		s.float("dropout_rate", 0.0, 0.5)
		s.float("subsample_rate", 0.5, 1.0)
		s.params["n_estimators"] = epoch
		return s.params, s.err
	},
	models.Boulevard: func(trial goptuna.Trial, epoch int) (models.Params, error) {
		s := newSuggester(trial)
		s.logFloat("learning_rate", 0.01, 1.0)
		s.int("max_depth", 3, 15)
		s.float("subsample_rate", 0.5, 1.0)
		s.params["n_estimators"] = epoch
		return s.params, s.err
	},
	models.BRATP: func(trial goptuna.Trial, epoch int) (models.Params, error) {
		s := newSuggester(trial)
		s.logFloat("learning_rate", 0.01, 1.0)
		s.int("max_depth", 3, 15)
		s.int("n_trees_per_group", 5, 30)
		s.float("subsample_rate", 0.5, 1.0)
		s.params["n_estimators"] = epoch
		return s.params, s.err
	},
}

// GetObjective returns the objective for family name. Every trial fits on
// the same random SubsampleFraction of (X, y), drawn without replacement
// from seed, and is scored by the in-sample MSE.
func GetObjective(name string, epoch int, X, y mat.Matrix, seed uint64) (Objective, error) {
	sp, ok := spaces[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedModel, "tuning %q", name)
	}
	n, p, target, err := model.CheckXY("tuning.GetObjective", X, y)
	if err != nil {
		return nil, err
	}

	size := max(1, sampling.FloorCount(SubsampleFraction, n))
	idx := sampling.WithoutReplacement(sampling.NewRand(seed), n, size)
	Xs := mat.NewDense(size, p, nil)
	ys := mat.NewVecDense(size, nil)
	for k, i := range idx {
		Xs.SetRow(k, mat.Row(nil, i, X))
		ys.SetVec(k, target[i])
	}

	return func(trial goptuna.Trial) (float64, error) {
		params, err := sp(trial, epoch)
		if err != nil {
			return 0, err
		}
		m, err := models.Build(name, params)
		if err != nil {
			return 0, err
		}
		if err := m.Fit(Xs, ys); err != nil {
			return 0, err
		}
		pred, err := m.Predict(Xs)
		if err != nil {
			return 0, err
		}
		return metrics.MSE(ys, pred)
	}, nil
}
