// Package calibration scales prediction interval widths to a target
// empirical coverage.
package calibration

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
)

// Config controls FindMinScale.
type Config struct {
	Target   float64
	Tol      float64
	CMax     float64
	MaxIters int
}

// Option mutates a Config.
type Option func(*Config)

func WithTarget(t float64) Option { return func(c *Config) { c.Target = t } }
func WithTol(t float64) Option    { return func(c *Config) { c.Tol = t } }
func WithCMax(m float64) Option   { return func(c *Config) { c.CMax = m } }
func WithMaxIters(n int) Option   { return func(c *Config) { c.MaxIters = n } }

// DefaultConfig targets 95% coverage with c in [0, 50].
func DefaultConfig() Config {
	return Config{Target: 0.95, Tol: 1e-3, CMax: 50, MaxIters: 50}
}

// EmpiricalCoverage is the fraction of points with
// yPred-c·w <= yTrue <= yPred+c·w.
func EmpiricalCoverage(c float64, yTrue, yPred, widths []float64) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("EmpiricalCoverage", "empty input")
	}
	if len(yPred) != n {
		return 0, errors.NewDimensionError("EmpiricalCoverage", n, len(yPred), 0)
	}
	if len(widths) != n {
		return 0, errors.NewDimensionError("EmpiricalCoverage", n, len(widths), 0)
	}
	return coverage(c, yTrue, yPred, widths), nil
}

func coverage(c float64, yTrue, yPred, widths []float64) float64 {
	inside := 0
	for i, y := range yTrue {
		lo, hi := yPred[i]-c*widths[i], yPred[i]+c*widths[i]
		if y >= lo && y <= hi {
			inside++
		}
	}
	return float64(inside) / float64(len(yTrue))
}

// FindMinScale bisects [0, CMax] for the smallest c whose coverage reaches
// Target and returns the upper end of the final bracket. It stops after
// MaxIters halvings or once the bracket is narrower than Tol.
func FindMinScale(yTrue, yPred, widths []float64, opts ...Option) (float64, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Target < 0 || cfg.Target > 1 {
		return 0, errors.NewValidationError("target", "must be in [0, 1]", cfg.Target)
	}
	if cfg.CMax <= 0 {
		return 0, errors.NewValidationError("c_max", "must be positive", cfg.CMax)
	}
	if cfg.Tol <= 0 {
		return 0, errors.NewValidationError("tol", "must be positive", cfg.Tol)
	}

	top, err := EmpiricalCoverage(cfg.CMax, yTrue, yPred, widths)
	if err != nil {
		return 0, err
	}
	if top < cfg.Target {
		return 0, errors.NewValueError("FindMinScale",
			fmt.Sprintf("c_max=%g too small; coverage %.4f is below target %.4f", cfg.CMax, top, cfg.Target))
	}

	lo, hi := 0.0, cfg.CMax
	iters := 0
	for iters < cfg.MaxIters {
		iters++
		mid := 0.5 * (lo + hi)
		if coverage(mid, yTrue, yPred, widths) >= cfg.Target {
			hi = mid
		} else {
			lo = mid
		}
		if hi-lo < cfg.Tol {
			break
		}
	}

	log.GetLoggerWithName("calibration").Debug("Scale found",
		log.OperationKey, log.OperationCalibrate,
		log.IterationKey, iters,
		log.CoverageKey, coverage(hi, yTrue, yPred, widths),
		"scale", hi,
	)
	return hi, nil
}

// EnsembleWidths returns, per row, the population standard deviation of the
// member predictions. preds holds one slice per member.
func EnsembleWidths(preds [][]float64) ([]float64, error) {
	if len(preds) == 0 || len(preds[0]) == 0 {
		return nil, errors.NewValueError("EnsembleWidths", "no member predictions")
	}
	n := len(preds[0])
	for k, p := range preds {
		if len(p) != n {
			return nil, errors.NewDimensionError(fmt.Sprintf("EnsembleWidths member %d", k), n, len(p), 0)
		}
	}
	widths := make([]float64, n)
	col := make([]float64, len(preds))
	for i := range widths {
		for k, p := range preds {
			col[k] = p[i]
		}
		widths[i] = stat.PopStdDev(col, nil)
	}
	return widths, nil
}
