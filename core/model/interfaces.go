// Package model defines the estimator contracts shared by every regressor in
// bratbench and the fitted-state bookkeeping they embed.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter is a model that learns from (X, y).
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor produces one prediction per row of X.
type Predictor interface {
	Predict(X mat.Matrix) (*mat.VecDense, error)
}

// Regressor is a fitted-state aware regression model.
type Regressor interface {
	Fitter
	Predictor
	IsFitted() bool
}

// StagedPredictor exposes predictions after each boosting stage or each
// added tree. The callback receives the stage index (0-based) and the
// predictions at that stage; returning false stops the iteration.
type StagedPredictor interface {
	StagedPredict(X mat.Matrix, fn func(stage int, pred *mat.VecDense) bool) error
}

// EvalFitter fits on (X, y) and returns the held-out MSE after every round.
type EvalFitter interface {
	FitEval(X, y, XEval, yEval mat.Matrix) ([]float64, error)
}

// ParameterGetter exposes hyperparameters for result files.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
