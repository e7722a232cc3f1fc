package experiment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/metrics"
)

// ModelSummary scores the final predictions of one model on the test split.
// Scores that are undefined for the test targets (R2 and explained variance
// on a constant target, MAPE on all-zero targets) are omitted.
type ModelSummary struct {
	RMSE              float64                `json:"rmse"`
	MAE               float64                `json:"mae"`
	R2                *float64               `json:"r2,omitempty"`
	ExplainedVariance *float64               `json:"explained_variance,omitempty"`
	MAPE              *float64               `json:"mape,omitempty"`
	Estimator         map[string]interface{} `json:"estimator,omitempty"`
}

func summarize(fit *fitted, y *mat.VecDense) (ModelSummary, error) {
	var s ModelSummary
	var err error
	if s.RMSE, err = metrics.RMSE(y, fit.pred); err != nil {
		return s, err
	}
	if s.MAE, err = metrics.MAE(y, fit.pred); err != nil {
		return s, err
	}
	s.R2 = optional(metrics.R2Score(y, fit.pred))
	s.ExplainedVariance = optional(metrics.ExplainedVarianceScore(y, fit.pred))
	s.MAPE = optional(metrics.MAPE(y, fit.pred))
	if pg, ok := fit.model.(model.ParameterGetter); ok {
		s.Estimator = pg.GetParams()
	}
	return s, nil
}

func optional(v float64, err error) *float64 {
	if err != nil {
		return nil
	}
	return &v
}
