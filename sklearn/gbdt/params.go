package gbdt

import (
	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

// GrowPolicy selects how trees are grown.
type GrowPolicy string

const (
	// DepthWise splits every node of a level before descending (XGBoost).
	DepthWise GrowPolicy = "depthwise"
	// LeafWise always splits the leaf with the largest gain (LightGBM).
	LeafWise GrowPolicy = "lossguide"
)

// TrainingParams contains the booster hyperparameters.
type TrainingParams struct {
	NumIterations int     `json:"num_iterations"`
	LearningRate  float64 `json:"learning_rate"`
	NumLeaves     int     `json:"num_leaves"`
	MaxDepth      int     `json:"max_depth"`
	MinDataInLeaf int     `json:"min_data_in_leaf"`

	// MinSumHessianInLeaf is min_child_weight.
	MinSumHessianInLeaf float64 `json:"min_sum_hessian_in_leaf"`
	Lambda              float64 `json:"lambda_l2"`
	MinGainToSplit      float64 `json:"min_gain_to_split"`

	// BaggingFraction rows are redrawn every BaggingFreq iterations;
	// BaggingFreq 0 disables bagging.
	BaggingFraction float64 `json:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq"`

	MaxBin     int        `json:"max_bin"`
	GrowPolicy GrowPolicy `json:"grow_policy"`
	Objective  string     `json:"objective"`

	Seed      uint64 `json:"seed"`
	Verbosity int    `json:"verbosity"`
}

// XGBoostParams mirrors the XGBRegressor defaults.
func XGBoostParams() TrainingParams {
	return TrainingParams{
		NumIterations:       100,
		LearningRate:        0.3,
		MaxDepth:            6,
		MinDataInLeaf:       1,
		MinSumHessianInLeaf: 1,
		Lambda:              1,
		BaggingFraction:     1,
		BaggingFreq:         1,
		MaxBin:              256,
		GrowPolicy:          DepthWise,
		Objective:           "regression",
	}
}

// LightGBMParams mirrors the LGBMRegressor defaults.
func LightGBMParams() TrainingParams {
	return TrainingParams{
		NumIterations:       100,
		LearningRate:        0.1,
		NumLeaves:           31,
		MaxDepth:            -1,
		MinDataInLeaf:       20,
		MinSumHessianInLeaf: 1e-3,
		BaggingFraction:     1,
		BaggingFreq:         0,
		MaxBin:              255,
		GrowPolicy:          LeafWise,
		Objective:           "regression",
	}
}

// Validate checks parameter domains.
func (p TrainingParams) Validate() error {
	switch {
	case p.NumIterations < 1:
		return errors.NewValidationError("num_iterations", "must be at least 1", p.NumIterations)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.GrowPolicy == LeafWise && p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	case p.Lambda < 0:
		return errors.NewValidationError("lambda_l2", "must not be negative", p.Lambda)
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	case p.MaxBin < 2 || p.MaxBin > 65535:
		return errors.NewValidationError("max_bin", "must be in [2, 65535]", p.MaxBin)
	case p.GrowPolicy != DepthWise && p.GrowPolicy != LeafWise:
		return errors.NewValidationError("grow_policy", "must be depthwise or lossguide", p.GrowPolicy)
	}
	return nil
}

func (p TrainingParams) bagging() bool {
	return p.BaggingFreq > 0 && p.BaggingFraction < 1
}
