// Package models maps model family names to configured estimators.
package models

import (
	"slices"

	"github.com/YuminosukeSato/bratbench/brat"
	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/sklearn/ensemble"
	"github.com/YuminosukeSato/bratbench/sklearn/gam"
	"github.com/YuminosukeSato/bratbench/sklearn/gbdt"
	"github.com/YuminosukeSato/bratbench/sklearn/linear_model"
)

// Model family names as used in configs and result files.
const (
	GBT        = "GBT"
	XGBoost    = "XGBoost"
	LightGBM   = "LightGBM"
	RF         = "RF"
	ElasticNet = "ElasticNet"
	GAM        = "GAM"
	BRATD      = "BRATD"
	Boulevard  = "Boulevard"
	BRATP      = "BRATP"
)

// Families lists every supported family.
var Families = []string{GBT, XGBoost, LightGBM, RF, ElasticNet, GAM, BRATD, Boulevard, BRATP}

// treeFamilies take n_estimators.
var treeFamilies = []string{GBT, XGBoost, LightGBM, RF, BRATD, Boulevard, BRATP}

// Supported reports whether name is a known family.
func Supported(name string) bool { return slices.Contains(Families, name) }

// UsesEstimators reports whether the family takes n_estimators.
func UsesEstimators(name string) bool { return slices.Contains(treeFamilies, name) }

// Build returns an unfitted estimator of family name configured by params.
// Tree ensembles without an explicit random_state use 42.
func Build(name string, params Params) (model.Regressor, error) {
	b, ok := builders[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedModel, "model %q", name)
	}
	if err := params.checkKnown(name, b.allowed); err != nil {
		return nil, err
	}
	if err := params.Require(name, b.required...); err != nil {
		return nil, err
	}
	return b.build(params)
}

type builder struct {
	allowed  []string
	required []string
	build    func(p Params) (model.Regressor, error)
}

var builders = map[string]builder{
	GBT: {
		allowed: []string{"n_estimators", "learning_rate", "max_depth", "subsample", "min_samples_split", "random_state"},
		build:   buildGBT,
	},
	XGBoost: {
		allowed: []string{"n_estimators", "learning_rate", "max_depth", "subsample", "min_child_weight", "reg_lambda", "max_bin", "random_state"},
		build:   func(p Params) (model.Regressor, error) { return buildGBDT(p, gbdt.NewXGBRegressor) },
	},
	LightGBM: {
		allowed: []string{"n_estimators", "learning_rate", "max_depth", "subsample", "subsample_freq", "num_leaves", "min_child_samples", "reg_lambda", "max_bin", "random_state"},
		build:   func(p Params) (model.Regressor, error) { return buildGBDT(p, gbdt.NewLGBMRegressor) },
	},
	RF: {
		allowed: []string{"n_estimators", "max_depth", "max_features", "bootstrap", "random_state"},
		build:   buildRF,
	},
	ElasticNet: {
		allowed: []string{"alpha", "l1_ratio", "max_iter", "tol"},
		build:   buildElasticNet,
	},
	GAM: {
		allowed:  []string{"lam", "n_splines"},
		required: []string{"lam", "n_splines"},
		build:    buildGAM,
	},
	BRATD: {
		allowed:  []string{"n_estimators", "learning_rate", "max_depth", "dropout_rate", "subsample_rate", "random_state"},
		required: []string{"n_estimators", "learning_rate", "max_depth", "dropout_rate", "subsample_rate"},
		build:    func(p Params) (model.Regressor, error) { return buildBRATD(p, false) },
	},
	Boulevard: {
		allowed:  []string{"n_estimators", "learning_rate", "max_depth", "subsample_rate", "random_state"},
		required: []string{"n_estimators", "learning_rate", "max_depth", "subsample_rate"},
		build:    func(p Params) (model.Regressor, error) { return buildBRATD(p, true) },
	},
	BRATP: {
		allowed:  []string{"n_estimators", "learning_rate", "max_depth", "n_trees_per_group", "subsample_rate", "random_state"},
		required: []string{"n_estimators", "learning_rate", "max_depth", "n_trees_per_group", "subsample_rate"},
		build:    buildBRATP,
	},
}

// reader collects the first conversion error.
type reader struct {
	p   Params
	err error
}

func (r *reader) float(key string, def float64) float64 {
	v, err := r.p.Float(key, def)
	if r.err == nil {
		r.err = err
	}
	return v
}

func (r *reader) int(key string, def int) int {
	v, err := r.p.Int(key, def)
	if r.err == nil {
		r.err = err
	}
	return v
}

func (r *reader) seed() uint64 {
	return uint64(r.int("random_state", 42))
}

func buildGBT(p Params) (model.Regressor, error) {
	r := &reader{p: p}
	m := ensemble.NewGradientBoostingRegressor(
		ensemble.WithGBNEstimators(r.int("n_estimators", 100)),
		ensemble.WithGBLearningRate(r.float("learning_rate", 0.1)),
		ensemble.WithGBMaxDepth(r.int("max_depth", 3)),
		ensemble.WithGBSubsample(r.float("subsample", 1.0)),
		ensemble.WithGBMinSamplesSplit(r.int("min_samples_split", 2)),
		ensemble.WithGBRandomState(r.seed()),
	)
	return m, r.err
}

func buildGBDT(p Params, ctor func(...gbdt.Option) *gbdt.Regressor) (model.Regressor, error) {
	r := &reader{p: p}
	opts := []gbdt.Option{gbdt.WithRandomState(uint64(r.int("random_state", 0)))}
	if p.Has("n_estimators") {
		opts = append(opts, gbdt.WithNEstimators(r.int("n_estimators", 0)))
	}
	if p.Has("learning_rate") {
		opts = append(opts, gbdt.WithLearningRate(r.float("learning_rate", 0)))
	}
	if p.Has("max_depth") {
		opts = append(opts, gbdt.WithMaxDepth(r.int("max_depth", 0)))
	}
	if p.Has("subsample") {
		opts = append(opts, gbdt.WithSubsample(r.float("subsample", 1)))
	}
	if p.Has("subsample_freq") {
		opts = append(opts, gbdt.WithSubsampleFreq(r.int("subsample_freq", 0)))
	}
	if p.Has("num_leaves") {
		opts = append(opts, gbdt.WithNumLeaves(r.int("num_leaves", 0)))
	}
	if p.Has("min_child_samples") {
		opts = append(opts, gbdt.WithMinChildSamples(r.int("min_child_samples", 0)))
	}
	if p.Has("min_child_weight") {
		opts = append(opts, gbdt.WithMinChildWeight(r.float("min_child_weight", 0)))
	}
	if p.Has("reg_lambda") {
		opts = append(opts, gbdt.WithRegLambda(r.float("reg_lambda", 0)))
	}
	if p.Has("max_bin") {
		opts = append(opts, gbdt.WithMaxBin(r.int("max_bin", 0)))
	}
	return ctor(opts...), r.err
}

func buildRF(p Params) (model.Regressor, error) {
	r := &reader{p: p}
	opts := []ensemble.RFOption{
		ensemble.WithRFNEstimators(r.int("n_estimators", 100)),
		ensemble.WithRFMaxDepth(r.int("max_depth", 0)),
		ensemble.WithRFMaxFeatures(r.int("max_features", 0)),
		ensemble.WithRFRandomState(r.seed()),
	}
	if v, ok := p["bootstrap"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return nil, errors.NewValidationError("bootstrap", "must be a boolean", v)
		}
		opts = append(opts, ensemble.WithRFBootstrap(b))
	}
	return ensemble.NewRandomForestRegressor(opts...), r.err
}

func buildElasticNet(p Params) (model.Regressor, error) {
	r := &reader{p: p}
	m := linear_model.NewElasticNet(
		linear_model.WithAlpha(r.float("alpha", 1.0)),
		linear_model.WithL1Ratio(r.float("l1_ratio", 0.5)),
		linear_model.WithMaxIter(r.int("max_iter", 1000)),
		linear_model.WithTol(r.float("tol", 1e-4)),
	)
	return m, r.err
}

func buildGAM(p Params) (model.Regressor, error) {
	r := &reader{p: p}
	m := gam.NewLinearGAM(
		gam.WithLam(r.float("lam", 0.6)),
		gam.WithNSplines(r.int("n_splines", 20)),
	)
	return m, r.err
}

func buildBRATD(p Params, boulevard bool) (model.Regressor, error) {
	r := &reader{p: p}
	opts := []brat.Option{
		brat.WithNEstimators(r.int("n_estimators", 100)),
		brat.WithLearningRate(r.float("learning_rate", 1.0)),
		brat.WithMaxDepth(r.int("max_depth", 3)),
		brat.WithSubsampleRate(r.float("subsample_rate", 0.8)),
		brat.WithMinSamplesSplit(2),
		brat.WithRandomState(r.seed()),
	}
	if boulevard {
		return brat.NewBoulevard(opts...), r.err
	}
	opts = append(opts, brat.WithDropoutRate(r.float("dropout_rate", 0.1)))
	return brat.NewBRATD(opts...), r.err
}

func buildBRATP(p Params) (model.Regressor, error) {
	r := &reader{p: p}
	m := brat.NewBRATP(
		brat.WithPNEstimators(r.int("n_estimators", 100)),
		brat.WithPLearningRate(r.float("learning_rate", 1.0)),
		brat.WithPMaxDepth(r.int("max_depth", 3)),
		brat.WithNTreesPerGroup(r.int("n_trees_per_group", 10)),
		brat.WithPSubsampleRate(r.float("subsample_rate", 0.8)),
		brat.WithPMinSamplesSplit(2),
		brat.WithPRandomState(r.seed()),
	)
	return m, r.err
}
