package gbdt

import (
	"slices"
	"sort"
)

// BinMapper maps raw feature values to histogram bins. A value v falls in
// bin b when UpperBounds[b-1] < v <= UpperBounds[b]; the last bin is open.
type BinMapper struct {
	UpperBounds []float64
}

// NumBins is len(UpperBounds)+1.
func (m *BinMapper) NumBins() int { return len(m.UpperBounds) + 1 }

// ValueToBin returns the bin for v.
func (m *BinMapper) ValueToBin(v float64) int {
	return sort.SearchFloat64s(m.UpperBounds, v)
}

// newBinMapper picks at most maxBin-1 cut points. With few distinct values
// every gap gets a midpoint; otherwise cut points follow equal-frequency
// quantiles of the sorted column.
func newBinMapper(column []float64, maxBin int) *BinMapper {
	sorted := slices.Clone(column)
	slices.Sort(sorted)
	distinct := slices.Compact(slices.Clone(sorted))

	if len(distinct) <= maxBin {
		bounds := make([]float64, 0, len(distinct)-1)
		for i := 0; i+1 < len(distinct); i++ {
			bounds = append(bounds, (distinct[i]+distinct[i+1])/2)
		}
		return &BinMapper{UpperBounds: bounds}
	}

	n := len(sorted)
	bounds := make([]float64, 0, maxBin-1)
	for b := 1; b < maxBin; b++ {
		pos := b * n / maxBin
		if pos <= 0 || pos >= n {
			continue
		}
		lo, hi := sorted[pos-1], sorted[pos]
		if lo == hi {
			continue
		}
		cut := (lo + hi) / 2
		if len(bounds) == 0 || cut > bounds[len(bounds)-1] {
			bounds = append(bounds, cut)
		}
	}
	return &BinMapper{UpperBounds: bounds}
}

// binnedData stores bin indices column-major.
type binnedData struct {
	mappers []*BinMapper
	bins    [][]uint16
}

func binRows(rows [][]float64, maxBin int) *binnedData {
	n := len(rows)
	p := len(rows[0])
	d := &binnedData{
		mappers: make([]*BinMapper, p),
		bins:    make([][]uint16, p),
	}
	column := make([]float64, n)
	for j := 0; j < p; j++ {
		for i, r := range rows {
			column[i] = r[j]
		}
		m := newBinMapper(column, maxBin)
		d.mappers[j] = m
		col := make([]uint16, n)
		for i, v := range column {
			col[i] = uint16(m.ValueToBin(v))
		}
		d.bins[j] = col
	}
	return d
}

// Histogram accumulates gradient statistics per bin of one feature.
type Histogram struct {
	Count   []int
	SumGrad []float64
	SumHess []float64
}

func newHistogram(numBins int) Histogram {
	return Histogram{
		Count:   make([]int, numBins),
		SumGrad: make([]float64, numBins),
		SumHess: make([]float64, numBins),
	}
}

func (h *Histogram) add(bins []uint16, indices []int, grad, hess []float64) {
	for _, i := range indices {
		b := bins[i]
		h.Count[b]++
		h.SumGrad[b] += grad[i]
		h.SumHess[b] += hess[i]
	}
}
