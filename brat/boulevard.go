// Package brat implements randomized boosting in the Boulevard family:
// every round fits to y minus a shrunk average of earlier rounds, and the
// model predicts a rescaled average of all rounds.
//
// BRATD drops each earlier tree at random when forming the residual;
// Boulevard is BRATD without dropout. BRATP replaces each tree by the
// average of a group of trees fitted in parallel on independent
// subsamples.
package brat

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/bratbench/core/parallel"
	"github.com/YuminosukeSato/bratbench/metrics"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
)

// member is one boosting round: a single tree or a tree group.
// predictChunk is the row count below which prediction stays on the calling
// goroutine.
const predictChunk = 2048

type member interface {
	PredictRow(x []float64) float64
}

// boulevard runs the shared round loop.
type boulevard struct {
	rounds       int
	learningRate float64
	dropoutRate  float64
	rng          *rand.Rand
	logger       log.Logger
}

type fitResult struct {
	members []member
	curve   []float64
}

// grow fits the member for round on residual.
type growFunc func(round int, residual []float64) (member, error)

func (b *boulevard) fit(rows [][]float64, y []float64, evalRows [][]float64, evalY []float64, grow growFunc) (*fitResult, error) {
	n := len(rows)
	res := &fitResult{
		members: make([]member, 0, b.rounds),
	}
	if evalRows != nil {
		res.curve = make([]float64, 0, b.rounds)
	}

	var perMember [][]float64
	sumAll := make([]float64, n)
	kept := make([]float64, n)
	residual := make([]float64, n)
	evalSum := make([]float64, len(evalRows))
	evalPred := make([]float64, len(evalRows))

	for round := 0; round < b.rounds; round++ {
		nKept := b.keptSum(perMember, sumAll, kept, round)
		if nKept == 0 {
			copy(residual, y)
		} else {
			scale := b.learningRate / float64(nKept)
			for i := range residual {
				residual[i] = y[i] - scale*kept[i]
			}
		}

		m, err := grow(round, residual)
		if err != nil {
			return nil, errors.Wrapf(err, "round %d", round)
		}
		res.members = append(res.members, m)

		pred := make([]float64, n)
		for i, r := range rows {
			pred[i] = m.PredictRow(r)
			sumAll[i] += pred[i]
		}
		if b.dropoutRate > 0 {
			perMember = append(perMember, pred)
		}
		if err := errors.CheckNumericalStability("brat.fit", pred, round); err != nil {
			return nil, err
		}

		if evalRows == nil {
			continue
		}
		scale := (1 + b.learningRate) / float64(round+1)
		for i, r := range evalRows {
			evalSum[i] += m.PredictRow(r)
			evalPred[i] = scale * evalSum[i]
		}
		mse, err := metrics.MSESlice(evalY, evalPred)
		if err != nil {
			return nil, err
		}
		res.curve = append(res.curve, mse)
		b.logger.Debug("Round completed", log.IterationKey, round, log.MSEKey, mse)
	}
	return res, nil
}

// keptSum fills kept with the summed training predictions of the members
// that survive dropout this round and returns how many there are.
func (b *boulevard) keptSum(perMember [][]float64, sumAll, kept []float64, round int) int {
	if round == 0 {
		return 0
	}
	if b.dropoutRate <= 0 {
		copy(kept, sumAll)
		return round
	}

	keep := make([]bool, round)
	nKept := 0
	for j := range keep {
		if b.rng.Float64() >= b.dropoutRate {
			keep[j] = true
			nKept++
		}
	}

	// Sum whichever side of the mask is smaller.
	if nKept >= round-nKept {
		copy(kept, sumAll)
		for j, k := range keep {
			if !k {
				subtract(kept, perMember[j])
			}
		}
	} else {
		clear(kept)
		for j, k := range keep {
			if k {
				add(kept, perMember[j])
			}
		}
	}
	return nKept
}

func add(dst, src []float64) {
	for i, v := range src {
		dst[i] += v
	}
}

func subtract(dst, src []float64) {
	for i, v := range src {
		dst[i] -= v
	}
}

// predictRows returns (1+learningRate) times the mean member prediction.
func predictRows(members []member, learningRate float64, rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	scale := (1 + learningRate) / float64(len(members))
	parallel.ParallelizeWithThreshold(len(rows), predictChunk, func(start, end int) {
		for i := start; i < end; i++ {
			var s float64
			for _, m := range members {
				s += m.PredictRow(rows[i])
			}
			out[i] = scale * s
		}
	})
	return out
}
