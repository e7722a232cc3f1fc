package model

import (
	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/YuminosukeSato/bratbench/pkg/errors"
)

// CheckXY validates a training pair and returns the number of rows and
// columns together with y flattened into a slice. y may be an n×1 matrix or
// a 1×n row vector.
func CheckXY(op string, X, y mat.Matrix) (n, p int, target []float64, err error) {
	n, p = X.Dims()
	if n == 0 || p == 0 {
		return 0, 0, nil, scigoErrors.Wrapf(scigoErrors.ErrEmptyData, "%s", op)
	}
	target = Column(y)
	if len(target) != n {
		return 0, 0, nil, scigoErrors.NewDimensionError(op, n, len(target), 0)
	}
	for i, v := range target {
		if err := scigoErrors.CheckScalar(op, v, i); err != nil {
			return 0, 0, nil, err
		}
	}
	return n, p, target, nil
}

// Column flattens a vector-shaped matrix into a new slice.
func Column(y mat.Matrix) []float64 {
	if v, ok := y.(mat.Vector); ok {
		out := make([]float64, v.Len())
		for i := range out {
			out[i] = v.AtVec(i)
		}
		return out
	}
	r, c := y.Dims()
	if r == 1 && c > 1 {
		out := make([]float64, c)
		for j := range out {
			out[j] = y.At(0, j)
		}
		return out
	}
	out := make([]float64, r)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out
}

// Rows copies X into row-major [][]float64, which the tree builders scan
// far more often than they index single cells.
func Rows(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	rows := make([][]float64, r)
	if d, ok := X.(*mat.Dense); ok {
		for i := range rows {
			rows[i] = mat.Row(nil, i, d)
		}
		return rows
	}
	for i := range rows {
		row := make([]float64, c)
		for j := range row {
			row[j] = X.At(i, j)
		}
		rows[i] = row
	}
	return rows
}
