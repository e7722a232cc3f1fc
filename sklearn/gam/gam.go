// Package gam implements a penalised additive model with one cubic B-spline
// term per feature.
package gam

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
)

// ridge keeps the system positive definite; B-spline bases sum to one, so
// the intercept and the terms are collinear.
var ridge = math.Sqrt(2.220446049250313e-16)

// LinearGAM fits y = b + Σ_j f_j(x_j) by penalised least squares where
// every f_j is a cubic B-spline with NSplines coefficients and a
// second-difference penalty weighted by Lam.
type LinearGAM struct {
	state *model.StateManager

	NSplines int
	Lam      float64

	bases_ []*bsplineBasis
	coef_  []float64
}

// Option configures a LinearGAM.
type Option func(*LinearGAM)

func WithNSplines(n int) Option {
	return func(g *LinearGAM) { g.NSplines = n }
}

func WithLam(lam float64) Option {
	return func(g *LinearGAM) { g.Lam = lam }
}

// NewLinearGAM uses 20 splines per feature and lam 0.6.
func NewLinearGAM(opts ...Option) *LinearGAM {
	g := &LinearGAM{state: model.NewStateManager(), NSplines: 20, Lam: 0.6}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fit solves (BᵀB + lam·DᵀD + εI) β = Bᵀy with a Cholesky factorisation.
func (g *LinearGAM) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearGAM.Fit")

	if g.NSplines <= splineDegree {
		return errors.NewValidationError("n_splines", fmt.Sprintf("must be greater than %d", splineDegree), g.NSplines)
	}
	if g.Lam < 0 {
		return errors.NewValidationError("lam", "must not be negative", g.Lam)
	}
	n, p, target, err := model.CheckXY("LinearGAM.Fit", X, y)
	if err != nil {
		return err
	}

	g.bases_ = make([]*bsplineBasis, p)
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, X)
		g.bases_[j] = newBSplineBasis(floats.Min(col), floats.Max(col), g.NSplines)
	}

	B := g.design(model.Rows(X))
	m := 1 + p*g.NSplines

	var A mat.SymDense
	A.SymOuterK(1, B.T())
	for j := 0; j < p; j++ {
		g.addPenalty(&A, 1+j*g.NSplines)
	}
	for i := 0; i < m; i++ {
		A.SetSym(i, i, A.At(i, i)+ridge)
	}

	var rhs mat.VecDense
	rhs.MulVec(B.T(), mat.NewVecDense(n, target))

	var chol mat.Cholesky
	if ok := chol.Factorize(&A); !ok {
		return errors.NewModelError("LinearGAM.Fit", "penalised normal equations are not positive definite", errors.ErrSingularMatrix)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return errors.Wrap(err, "LinearGAM.Fit")
	}
	g.coef_ = beta.RawVector().Data
	if err := errors.CheckNumericalStability("LinearGAM.Fit", g.coef_, 0); err != nil {
		return err
	}

	log.GetLoggerWithName("gam").Debug("Training completed",
		log.ModelNameKey, "GAM",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
	)
	g.state.SetDimensions(p, n)
	g.state.SetFitted()
	return nil
}

// addPenalty adds Lam·DᵀD for the block starting at offset, D being the
// second-difference operator on NSplines coefficients.
func (g *LinearGAM) addPenalty(A *mat.SymDense, offset int) {
	k := g.NSplines
	d := [3]float64{1, -2, 1}
	for r := 0; r < k-2; r++ {
		for a := 0; a < 3; a++ {
			for b := a; b < 3; b++ {
				i, j := offset+r+a, offset+r+b
				A.SetSym(i, j, A.At(i, j)+g.Lam*d[a]*d[b])
			}
		}
	}
}

func (g *LinearGAM) design(rows [][]float64) *mat.Dense {
	k := g.NSplines
	B := mat.NewDense(len(rows), 1+len(g.bases_)*k, nil)
	buf := make([]float64, k)
	for i, r := range rows {
		B.Set(i, 0, 1)
		for j, basis := range g.bases_ {
			basis.eval(r[j], buf)
			for c, v := range buf {
				if v != 0 {
					B.Set(i, 1+j*k+c, v)
				}
			}
		}
	}
	return B
}

// Predict evaluates the fitted model. Feature values outside the training
// range are clamped to it.
func (g *LinearGAM) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if err := g.state.CheckPredictInput("LinearGAM", X); err != nil {
		return nil, err
	}
	B := g.design(model.Rows(X))
	var out mat.VecDense
	out.MulVec(B, mat.NewVecDense(len(g.coef_), g.coef_))
	return &out, nil
}

// IsFitted reports whether Fit has succeeded.
func (g *LinearGAM) IsFitted() bool { return g.state.IsFitted() }

// Coef returns the intercept followed by the spline coefficients of each
// feature.
func (g *LinearGAM) Coef() []float64 { return g.coef_ }

// GetParams returns the hyperparameters.
func (g *LinearGAM) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_splines": g.NSplines,
		"lam":       g.Lam,
	}
}

func (g *LinearGAM) String() string {
	return fmt.Sprintf("LinearGAM(n_splines=%d, lam=%g)", g.NSplines, g.Lam)
}
