// Package metrics implements the regression scores used to compare models.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

// MSE computes the mean squared error.
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkPair("MSE", yTrue, yPred); err != nil {
		return 0, err
	}
	return MSESlice(vecData(yTrue), vecData(yPred))
}

// MSESlice computes the MSE of two equal-length slices.
func MSESlice(yTrue, yPred []float64) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("MSE", "empty vector")
	}
	if len(yPred) != n {
		return 0, errors.NewDimensionError("MSE", n, len(yPred), 0)
	}
	var sum float64
	for i, v := range yTrue {
		diff := v - yPred[i]
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE is the square root of MSE.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE computes the mean absolute error.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkPair("MAE", yTrue, yPred); err != nil {
		return 0, err
	}
	a, b := vecData(yTrue), vecData(yPred)
	return floats.Distance(a, b, 1) / float64(len(a)), nil
}

// R2Score computes the coefficient of determination.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	a, b := vecData(yTrue), vecData(yPred)
	yMean := stat.Mean(a, nil)

	var tss, rss float64
	for i, v := range a {
		tss += (v - yMean) * (v - yMean)
		rss += (v - b[i]) * (v - b[i])
	}
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// MAPE computes the mean absolute percentage error over non-zero targets.
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkPair("MAPE", yTrue, yPred); err != nil {
		return 0, err
	}

	var sum float64
	validCount := 0
	for i := 0; i < yTrue.Len(); i++ {
		v := yTrue.AtVec(i)
		if v != 0 {
			sum += math.Abs(v-yPred.AtVec(i)) / math.Abs(v)
			validCount++
		}
	}
	if validCount == 0 {
		return 0, errors.Newf("MAPE: all yTrue values are zero")
	}
	return (sum / float64(validCount)) * 100, nil
}

// ExplainedVarianceScore computes 1 - Var(yTrue-yPred)/Var(yTrue).
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkPair("ExplainedVarianceScore", yTrue, yPred); err != nil {
		return 0, err
	}
	a, b := vecData(yTrue), vecData(yPred)
	diff := make([]float64, len(a))
	floats.SubTo(diff, a, b)

	varTrue := PopulationVariance(a)
	if varTrue == 0 {
		return 0, errors.Newf("ExplainedVarianceScore: no variance in yTrue")
	}
	return 1 - PopulationVariance(diff)/varTrue, nil
}

// PopulationVariance is the biased (divide by n) variance.
func PopulationVariance(x []float64) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}
	_, v := stat.MeanVariance(x, nil)
	return v * float64(n-1) / float64(n)
}

func checkPair(op string, yTrue, yPred *mat.VecDense) error {
	if yTrue == nil || yTrue.IsEmpty() {
		return errors.NewValueError(op, "empty vector")
	}
	if yPred == nil || yPred.IsEmpty() {
		return errors.NewDimensionError(op, yTrue.Len(), 0, 0)
	}
	if yPred.Len() != yTrue.Len() {
		return errors.NewDimensionError(op, yTrue.Len(), yPred.Len(), 0)
	}
	return nil
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
