// Package tree implements a CART regression tree. The ensembles in
// sklearn/ensemble and brat grow their trees through FitRows so that one row
// matrix can be shared by thousands of fits.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

const leaf = -1

// Node is one node of a fitted tree. Internal nodes send rows with
// x[Feature] <= Threshold to Left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Impurity  float64
	NSamples  int
}

// IsLeaf reports whether n has no children.
func (n Node) IsLeaf() bool { return n.Left == leaf }

// DecisionTreeRegressor is a squared-error regression tree.
type DecisionTreeRegressor struct {
	state *model.StateManager

	maxDepth            int
	minSamplesSplit     int
	minSamplesLeaf      int
	maxFeatures         int
	minImpurityDecrease float64
	rng                 *rand.Rand

	nodes               []Node
	depth               int
	featureImportances_ []float64
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits the depth of the tree. depth <= 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeRegressor) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of rows in each child.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures samples k candidate features at every node. k <= 0 uses
// all features.
func WithMaxFeatures(k int) Option {
	return func(dt *DecisionTreeRegressor) { dt.maxFeatures = k }
}

// WithMinImpurityDecrease rejects splits that reduce the weighted
// impurity by less than d.
func WithMinImpurityDecrease(d float64) Option {
	return func(dt *DecisionTreeRegressor) { dt.minImpurityDecrease = d }
}

// WithRandomState seeds the feature sampler.
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeRegressor) { dt.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithRand shares a random source with the caller.
func WithRand(r *rand.Rand) Option {
	return func(dt *DecisionTreeRegressor) { dt.rng = r }
}

// NewDecisionTreeRegressor creates an unlimited-depth tree with
// min_samples_split 2 and min_samples_leaf 1.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Fit grows the tree on every row of X.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	n, _, target, err := model.CheckXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return dt.FitRows(model.Rows(X), target, idx)
}

// FitRows grows the tree on rows[idx] against y[idx]. idx may contain
// duplicates and is reordered in place.
func (dt *DecisionTreeRegressor) FitRows(rows [][]float64, y []float64, idx []int) error {
	if len(idx) == 0 || len(rows) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "DecisionTreeRegressor.FitRows")
	}
	if len(y) != len(rows) {
		return errors.NewDimensionError("DecisionTreeRegressor.FitRows", len(rows), len(y), 0)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}

	nFeatures := len(rows[0])
	if dt.rng == nil && dt.maxFeatures > 0 && dt.maxFeatures < nFeatures {
		dt.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	b := &builder{
		dt:       dt,
		rows:     rows,
		y:        y,
		features: make([]int, nFeatures),
		scratch:  make([]int, len(idx)),
	}
	for j := range b.features {
		b.features[j] = j
	}

	dt.nodes = dt.nodes[:0]
	dt.depth = 0
	dt.featureImportances_ = make([]float64, nFeatures)
	b.build(idx, 0)

	var total float64
	for _, v := range dt.featureImportances_ {
		total += v
	}
	if total > 0 {
		for j := range dt.featureImportances_ {
			dt.featureImportances_[j] /= total
		}
	}

	dt.state.SetDimensions(nFeatures, len(idx))
	dt.state.SetFitted()
	return nil
}

// Predict returns one prediction per row of X.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if err := dt.state.CheckPredictInput("DecisionTreeRegressor", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewVecDense(r, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.SetVec(i, dt.PredictRow(row))
	}
	return out, nil
}

// PredictRow walks the tree for a single row. The tree must be fitted.
func (dt *DecisionTreeRegressor) PredictRow(x []float64) float64 {
	i := 0
	for {
		n := &dt.nodes[i]
		if n.Left == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// PredictRows writes the prediction of every row into out.
func (dt *DecisionTreeRegressor) PredictRows(rows [][]float64, out []float64) {
	for i, x := range rows {
		out[i] = dt.PredictRow(x)
	}
}

// IsFitted reports whether the tree has been grown.
func (dt *DecisionTreeRegressor) IsFitted() bool { return dt.state.IsFitted() }

// Nodes returns the fitted nodes; index 0 is the root.
func (dt *DecisionTreeRegressor) Nodes() []Node { return dt.nodes }

// NodeCount returns the number of nodes.
func (dt *DecisionTreeRegressor) NodeCount() int { return len(dt.nodes) }

// Depth returns the depth of the deepest leaf.
func (dt *DecisionTreeRegressor) Depth() int { return dt.depth }

// NumLeaves counts the leaves.
func (dt *DecisionTreeRegressor) NumLeaves() int {
	count := 0
	for _, n := range dt.nodes {
		if n.IsLeaf() {
			count++
		}
	}
	return count
}

// FeatureImportances returns the normalised total squared-error reduction
// contributed by each feature.
func (dt *DecisionTreeRegressor) FeatureImportances() []float64 {
	return dt.featureImportances_
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":             dt.maxDepth,
		"min_samples_split":     dt.minSamplesSplit,
		"min_samples_leaf":      dt.minSamplesLeaf,
		"max_features":          dt.maxFeatures,
		"min_impurity_decrease": dt.minImpurityDecrease,
	}
}

func (dt *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}

type builder struct {
	dt       *DecisionTreeRegressor
	rows     [][]float64
	y        []float64
	features []int
	scratch  []int
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	nLeft     int
}

// build appends the subtree for idx and returns its node index.
func (b *builder) build(idx []int, depth int) int {
	dt := b.dt
	n := len(idx)

	var sum, sumSq float64
	for _, i := range idx {
		v := b.y[i]
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	impurity := math.Max(sumSq/float64(n)-mean*mean, 0)

	id := len(dt.nodes)
	dt.nodes = append(dt.nodes, Node{
		Feature:  -1,
		Left:     leaf,
		Right:    leaf,
		Value:    mean,
		Impurity: impurity,
		NSamples: n,
	})
	if depth > dt.depth {
		dt.depth = depth
	}

	if (dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		n < dt.minSamplesSplit ||
		n < 2*dt.minSamplesLeaf ||
		impurity <= 1e-12 {
		return id
	}

	best, ok := b.findBestSplit(idx, sum)
	if !ok || best.gain/float64(n) < dt.minImpurityDecrease {
		return id
	}

	// partition idx so the left rows come first
	lo, hi := 0, n-1
	for lo <= hi {
		if b.rows[idx[lo]][best.feature] <= best.threshold {
			lo++
		} else {
			idx[lo], idx[hi] = idx[hi], idx[lo]
			hi--
		}
	}

	dt.featureImportances_[best.feature] += best.gain
	left := b.build(idx[:lo], depth+1)
	right := b.build(idx[lo:], depth+1)

	node := &dt.nodes[id]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = left
	node.Right = right
	return id
}

// findBestSplit scans candidate features for the threshold maximising the
// reduction in summed squared error.
func (b *builder) findBestSplit(idx []int, sum float64) (split, bool) {
	dt := b.dt
	n := len(idx)
	minLeaf := dt.minSamplesLeaf
	parentScore := sum * sum / float64(n)

	features := b.features
	if dt.maxFeatures > 0 && dt.maxFeatures < len(features) {
		dt.rng.Shuffle(len(features), func(i, j int) {
			features[i], features[j] = features[j], features[i]
		})
		features = features[:dt.maxFeatures]
	}

	best := split{feature: -1}
	sorted := b.scratch[:n]
	for _, f := range features {
		copy(sorted, idx)
		rows := b.rows
		slices.SortFunc(sorted, func(a, c int) int {
			va, vc := rows[a][f], rows[c][f]
			switch {
			case va < vc:
				return -1
			case va > vc:
				return 1
			}
			return 0
		})

		var leftSum float64
		for k := 0; k < n-1; k++ {
			leftSum += b.y[sorted[k]]
			nLeft := k + 1
			if nLeft < minLeaf {
				continue
			}
			if n-nLeft < minLeaf {
				break
			}
			cur, next := rows[sorted[k]][f], rows[sorted[k+1]][f]
			if cur == next {
				continue
			}
			rightSum := sum - leftSum
			score := leftSum*leftSum/float64(nLeft) + rightSum*rightSum/float64(n-nLeft)
			if gain := score - parentScore; gain > best.gain+1e-12 {
				threshold := cur + (next-cur)/2
				if threshold >= next {
					threshold = cur
				}
				best = split{feature: f, threshold: threshold, gain: gain, nLeft: nLeft}
			}
		}
	}
	return best, best.feature >= 0
}
