// Package linear_model implements penalised linear regression.
package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
)

// ElasticNet minimises
//
//	1/(2n) ||y - Xw - b||² + alpha*l1_ratio*||w||₁ + alpha*(1-l1_ratio)/2*||w||²
//
// by cyclic coordinate descent. The intercept is recovered from the column
// means.
type ElasticNet struct {
	state *model.StateManager

	alpha        float64
	l1Ratio      float64
	maxIter      int
	tol          float64
	fitIntercept bool

	coef_      []float64
	intercept_ float64
	nIter_     int
	dualGap_   float64
}

// ElasticNetOption configures an ElasticNet.
type ElasticNetOption func(*ElasticNet)

func WithAlpha(alpha float64) ElasticNetOption {
	return func(e *ElasticNet) { e.alpha = alpha }
}

// WithL1Ratio mixes the penalties: 1 is the lasso, 0 is ridge.
func WithL1Ratio(r float64) ElasticNetOption {
	return func(e *ElasticNet) { e.l1Ratio = r }
}

func WithMaxIter(n int) ElasticNetOption {
	return func(e *ElasticNet) { e.maxIter = n }
}

func WithTol(tol float64) ElasticNetOption {
	return func(e *ElasticNet) { e.tol = tol }
}

func WithFitIntercept(fit bool) ElasticNetOption {
	return func(e *ElasticNet) { e.fitIntercept = fit }
}

// NewElasticNet uses alpha 1, l1_ratio 0.5, 1000 iterations and tol 1e-4.
func NewElasticNet(opts ...ElasticNetOption) *ElasticNet {
	e := &ElasticNet{
		state:        model.NewStateManager(),
		alpha:        1.0,
		l1Ratio:      0.5,
		maxIter:      1000,
		tol:          1e-4,
		fitIntercept: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ElasticNet) validate() error {
	if e.alpha < 0 {
		return errors.NewValidationError("alpha", "must not be negative", e.alpha)
	}
	if e.l1Ratio < 0 || e.l1Ratio > 1 {
		return errors.NewValidationError("l1_ratio", "must be in [0, 1]", e.l1Ratio)
	}
	if e.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", e.maxIter)
	}
	return nil
}

// Fit runs coordinate descent. Stopping at max_iter without meeting the
// duality-gap tolerance emits a ConvergenceWarning; the coefficients are kept.
func (e *ElasticNet) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "ElasticNet.Fit")

	if err := e.validate(); err != nil {
		return err
	}
	n, p, target, err := model.CheckXY("ElasticNet.Fit", X, y)
	if err != nil {
		return err
	}

	cols := make([][]float64, p)
	xMean := make([]float64, p)
	for j := 0; j < p; j++ {
		cols[j] = mat.Col(nil, j, X)
	}
	yc := append([]float64(nil), target...)
	var yMean float64
	if e.fitIntercept {
		for j := range cols {
			xMean[j] = stat.Mean(cols[j], nil)
			floats.AddConst(-xMean[j], cols[j])
		}
		yMean = stat.Mean(yc, nil)
		floats.AddConst(-yMean, yc)
	}

	l1 := e.alpha * e.l1Ratio * float64(n)
	l2 := e.alpha * (1 - e.l1Ratio) * float64(n)

	normSq := make([]float64, p)
	for j := range cols {
		normSq[j] = floats.Dot(cols[j], cols[j])
	}

	w := make([]float64, p)
	residual := append([]float64(nil), yc...)
	ySq := floats.Dot(yc, yc)
	tolScaled := e.tol * ySq

	converged := false
	e.dualGap_ = 0
	iter := 0
	// a zero (centred) target is fit exactly by w = 0
	if ySq == 0 {
		converged = true
	} else {
		for iter = 1; iter <= e.maxIter; iter++ {
			var wMax, dwMax float64
			for j := 0; j < p; j++ {
				if normSq[j] == 0 {
					continue
				}
				old := w[j]
				if old != 0 {
					floats.AddScaled(residual, old, cols[j])
				}
				rho := floats.Dot(cols[j], residual)
				w[j] = softThreshold(rho, l1) / (normSq[j] + l2)
				if w[j] != 0 {
					floats.AddScaled(residual, -w[j], cols[j])
				}
				dwMax = math.Max(dwMax, math.Abs(w[j]-old))
				wMax = math.Max(wMax, math.Abs(w[j]))
			}
			if err := errors.CheckNumericalStability("ElasticNet.Fit", w, iter); err != nil {
				return err
			}

			if wMax == 0 || dwMax/wMax < e.tol || iter == e.maxIter {
				e.dualGap_ = dualityGap(cols, yc, residual, w, l1, l2)
				if e.dualGap_ < tolScaled {
					converged = true
					break
				}
			}
		}
	}
	if iter > e.maxIter {
		iter = e.maxIter
	}

	e.coef_ = w
	e.intercept_ = 0
	if e.fitIntercept {
		e.intercept_ = yMean - floats.Dot(xMean, w)
	}
	e.nIter_ = iter

	logger := log.GetLoggerWithName("linear_model").With(log.ModelNameKey, "ElasticNet")
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("ElasticNet", e.maxIter,
			fmt.Sprintf("duality gap %.3g exceeds tolerance %.3g", e.dualGap_, tolScaled)))
	}
	logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.IterationKey, iter,
	)

	e.state.SetDimensions(p, n)
	e.state.SetFitted()
	return nil
}

func softThreshold(x, lambda float64) float64 {
	switch {
	case x > lambda:
		return x - lambda
	case x < -lambda:
		return x + lambda
	default:
		return 0
	}
}

// dualityGap follows the gap used by the coordinate descent solver of
// scikit-learn for the unscaled problem ½||r||² + l1||w||₁ + l2/2||w||².
func dualityGap(cols [][]float64, y, residual, w []float64, l1, l2 float64) float64 {
	var dualNorm float64
	for j, c := range cols {
		xta := floats.Dot(c, residual) - l2*w[j]
		dualNorm = math.Max(dualNorm, math.Abs(xta))
	}
	rNorm2 := floats.Dot(residual, residual)
	wNorm2 := floats.Dot(w, w)

	scale := 1.0
	gap := rNorm2
	if dualNorm > l1 {
		scale = l1 / dualNorm
		gap = 0.5 * (rNorm2 + rNorm2*scale*scale)
	}
	gap += l1*floats.Norm(w, 1) - scale*floats.Dot(residual, y) + 0.5*l2*(1+scale*scale)*wNorm2
	return gap
}

// Predict returns X·coef + intercept.
func (e *ElasticNet) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if err := e.state.CheckPredictInput("ElasticNet", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewVecDense(n, nil)
	out.MulVec(X, mat.NewVecDense(len(e.coef_), e.coef_))
	for i := 0; i < n; i++ {
		out.SetVec(i, out.AtVec(i)+e.intercept_)
	}
	return out, nil
}

// IsFitted reports whether Fit has succeeded.
func (e *ElasticNet) IsFitted() bool { return e.state.IsFitted() }

// Coef returns the fitted coefficients.
func (e *ElasticNet) Coef() []float64 { return e.coef_ }

// Intercept returns the fitted intercept.
func (e *ElasticNet) Intercept() float64 { return e.intercept_ }

// NIter returns the number of coordinate descent sweeps of the last fit.
func (e *ElasticNet) NIter() int { return e.nIter_ }

// GetParams returns the hyperparameters.
func (e *ElasticNet) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         e.alpha,
		"l1_ratio":      e.l1Ratio,
		"max_iter":      e.maxIter,
		"tol":           e.tol,
		"fit_intercept": e.fitIntercept,
	}
}

func (e *ElasticNet) String() string {
	return fmt.Sprintf("ElasticNet(alpha=%g, l1_ratio=%g, max_iter=%d)", e.alpha, e.l1Ratio, e.maxIter)
}
