package gbdt

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

// ObjectiveFunction supplies first and second derivatives of a loss.
type ObjectiveFunction interface {
	CalculateGradient(prediction, target float64) float64
	CalculateHessian(prediction, target float64) float64
	CalculateLoss(prediction, target float64) float64
	GetInitScore(targets []float64) float64
	Name() string
}

// CreateObjectiveFunction returns the objective registered under name.
func CreateObjectiveFunction(name string) (ObjectiveFunction, error) {
	switch name {
	case "regression", "l2", "mse", "reg:squarederror", "":
		return L2Objective{}, nil
	case "huber":
		return HuberObjective{Delta: 1.0}, nil
	}
	return nil, errors.NewValidationError("objective", "unsupported objective", name)
}

// L2Objective is half squared error.
type L2Objective struct{}

func (L2Objective) CalculateGradient(prediction, target float64) float64 { return prediction - target }
func (L2Objective) CalculateHessian(_, _ float64) float64                { return 1 }
func (L2Objective) CalculateLoss(prediction, target float64) float64 {
	d := prediction - target
	return d * d
}
func (L2Objective) GetInitScore(targets []float64) float64 { return stat.Mean(targets, nil) }
func (L2Objective) Name() string                           { return "l2" }

// HuberObjective is quadratic within Delta of the target and linear beyond.
type HuberObjective struct {
	Delta float64
}

func (h HuberObjective) CalculateGradient(prediction, target float64) float64 {
	d := prediction - target
	if math.Abs(d) <= h.Delta {
		return d
	}
	return math.Copysign(h.Delta, d)
}

func (h HuberObjective) CalculateHessian(_, _ float64) float64 { return 1 }

func (h HuberObjective) CalculateLoss(prediction, target float64) float64 {
	d := math.Abs(prediction - target)
	if d <= h.Delta {
		return 0.5 * d * d
	}
	return h.Delta * (d - 0.5*h.Delta)
}

func (h HuberObjective) GetInitScore(targets []float64) float64 {
	sorted := slices.Clone(targets)
	slices.Sort(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func (h HuberObjective) Name() string { return "huber" }
