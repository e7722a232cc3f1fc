package gam

import (
	"math"
)

const splineDegree = 3

// bsplineBasis is a uniform cubic B-spline basis over [lo, hi].
type bsplineBasis struct {
	Lo, Hi   float64
	NSplines int
	knots    []float64
}

func newBSplineBasis(lo, hi float64, nSplines int) *bsplineBasis {
	h := (hi - lo) / float64(nSplines-splineDegree)
	if h <= 0 || math.IsNaN(h) {
		h = 1
	}
	knots := make([]float64, nSplines+splineDegree+1)
	for i := range knots {
		knots[i] = lo + float64(i-splineDegree)*h
	}
	return &bsplineBasis{Lo: lo, Hi: hi, NSplines: nSplines, knots: knots}
}

// eval writes the basis values at x into out (length NSplines). x is
// clamped to [Lo, Hi].
func (b *bsplineBasis) eval(x float64, out []float64) {
	for i := range out {
		out[i] = 0
	}
	x = math.Min(math.Max(x, b.Lo), b.Hi)

	t := b.knots
	// span k with t[k] <= x < t[k+1], k in [degree, NSplines-1]
	k := splineDegree
	for k < b.NSplines-1 && x >= t[k+1] {
		k++
	}

	var n, left, right [splineDegree + 1]float64
	n[0] = 1
	for j := 1; j <= splineDegree; j++ {
		left[j] = x - t[k+1-j]
		right[j] = t[k+j] - x
		saved := 0.0
		for r := 0; r < j; r++ {
			temp := n[r] / (right[r+1] + left[j-r])
			n[r] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		n[j] = saved
	}
	for r := 0; r <= splineDegree; r++ {
		out[k-splineDegree+r] = n[r]
	}
}
