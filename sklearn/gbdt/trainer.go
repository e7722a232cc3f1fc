package gbdt

import (
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/YuminosukeSato/bratbench/core/parallel"
	"github.com/YuminosukeSato/bratbench/core/sampling"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
)

const kEpsilon = 1e-10

// SplitInfo describes the best split found for a leaf.
type SplitInfo struct {
	Feature   int
	Bin       int
	Threshold float64
	Gain      float64

	LeftGrad, LeftHess   float64
	RightGrad, RightHess float64
	LeftCount            int
	RightCount           int
}

func (s SplitInfo) valid() bool { return s.Feature >= 0 }

type validSet struct {
	name   string
	rows   [][]float64
	target []float64
	scores []float64
}

// Trainer fits a Model by Newton boosting on histogram-binned features.
// Predictions on the training and validation rows are cached and updated
// with each new tree.
type Trainer struct {
	params    TrainingParams
	objective ObjectiveFunction
	callbacks *CallbackList
	logger    log.Logger

	rows   [][]float64
	target []float64
	data   *binnedData
	grad   []float64
	hess   []float64
	scores []float64
	valid  []*validSet

	rng   *rand.Rand
	model *Model
}

// NewTrainer creates a trainer.
func NewTrainer(params TrainingParams, callbacks ...Callback) *Trainer {
	return &Trainer{
		params:    params,
		callbacks: NewCallbackList(callbacks...),
		logger:    log.GetLoggerWithName("gbdt.trainer"),
	}
}

// AddValidation registers rows whose "<name>_<objective>" metric is
// reported to callbacks each iteration.
func (t *Trainer) AddValidation(name string, rows [][]float64, target []float64) {
	t.valid = append(t.valid, &validSet{name: name, rows: rows, target: target})
}

// Fit trains on rows.
func (t *Trainer) Fit(rows [][]float64, target []float64) (err error) {
	defer errors.Recover(&err, "gbdt.Trainer.Fit")

	if err := t.params.Validate(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.NewValueError("gbdt.Trainer.Fit", "empty training data")
	}
	if len(rows) != len(target) {
		return errors.NewDimensionError("gbdt.Trainer.Fit", len(rows), len(target), 0)
	}
	t.objective, err = CreateObjectiveFunction(t.params.Objective)
	if err != nil {
		return err
	}

	n := len(rows)
	t.rows = rows
	t.target = target
	t.data = binRows(rows, t.params.MaxBin)
	t.grad = make([]float64, n)
	t.hess = make([]float64, n)
	t.rng = sampling.NewRand(t.params.Seed)

	init := t.objective.GetInitScore(target)
	t.model = &Model{
		InitScore:   init,
		NumFeatures: len(rows[0]),
		Params:      t.params,
		Trees:       make([]Tree, 0, t.params.NumIterations),
	}
	t.scores = fill(n, init)
	for _, v := range t.valid {
		v.scores = fill(len(v.rows), init)
	}

	t.logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, t.model.NumFeatures,
		"grow_policy", string(t.params.GrowPolicy),
	)

	bag := sampling.All(n)
	bagSize := max(1, sampling.FloorCount(t.params.BaggingFraction, n))

	for it := 0; it < t.params.NumIterations; it++ {
		begin := time.Now()
		for i := range rows {
			t.grad[i] = t.objective.CalculateGradient(t.scores[i], target[i])
			t.hess[i] = t.objective.CalculateHessian(t.scores[i], target[i])
		}
		if t.params.bagging() && it%t.params.BaggingFreq == 0 {
			bag = sampling.WithoutReplacement(t.rng, n, bagSize)
		}

		tree, err := t.buildTree(bag)
		if err != nil {
			return errors.Wrapf(err, "tree %d", it)
		}
		tree.TreeIndex = it
		t.model.Trees = append(t.model.Trees, tree)

		for i, r := range rows {
			t.scores[i] += tree.Predict(r)
		}
		results := map[string]float64{"training_" + t.objective.Name(): t.loss(t.scores, target)}
		for _, v := range t.valid {
			for i, r := range v.rows {
				v.scores[i] += tree.Predict(r)
			}
			results[v.name+"_"+t.objective.Name()] = t.loss(v.scores, v.target)
		}

		if err := t.callbacks.AfterIteration(it, begin, t.model, results); err != nil {
			return errors.Wrapf(err, "callback at iteration %d", it)
		}
		if t.callbacks.ShouldStop() {
			break
		}
	}

	t.logger.Debug("Training completed",
		log.StagesKey, len(t.model.Trees),
		log.LossKey, t.loss(t.scores, target),
	)
	return nil
}

// GetModel returns the trained model.
func (t *Trainer) GetModel() *Model { return t.model }

func (t *Trainer) loss(scores, target []float64) float64 {
	var sum float64
	for i := range scores {
		sum += t.objective.CalculateLoss(scores[i], target[i])
	}
	return sum / float64(len(scores))
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// leaf is a growable leaf of the tree under construction.
type leaf struct {
	node    int
	indices []int
	depth   int
	sumGrad float64
	sumHess float64
	split   SplitInfo
}

func (t *Trainer) buildTree(indices []int) (Tree, error) {
	tree := Tree{ShrinkageRate: t.params.LearningRate}

	root := &leaf{indices: indices}
	for _, i := range indices {
		root.sumGrad += t.grad[i]
		root.sumHess += t.hess[i]
	}
	root.node = t.addLeaf(&tree, root)
	var err error
	if root.split, err = t.findBestSplit(root); err != nil {
		return Tree{}, err
	}

	switch t.params.GrowPolicy {
	case LeafWise:
		err = t.growLeafWise(&tree, root)
	default:
		err = t.growDepthWise(&tree, root)
	}
	if err != nil {
		return Tree{}, err
	}

	for i := range tree.Nodes {
		if tree.Nodes[i].IsLeaf() {
			tree.NumLeaves++
		}
	}
	return tree, nil
}

// growDepthWise splits every splittable leaf of a level before moving on.
func (t *Trainer) growDepthWise(tree *Tree, root *leaf) error {
	level := []*leaf{root}
	for len(level) > 0 {
		var next []*leaf
		for _, l := range level {
			if !l.split.valid() {
				continue
			}
			left, right, err := t.split(tree, l)
			if err != nil {
				return err
			}
			next = append(next, left, right)
		}
		level = next
	}
	return nil
}

// growLeafWise repeatedly splits the leaf with the largest gain until
// NumLeaves is reached.
func (t *Trainer) growLeafWise(tree *Tree, root *leaf) error {
	leaves := []*leaf{root}
	for numLeaves := 1; numLeaves < t.params.NumLeaves; numLeaves++ {
		best := -1
		for i, l := range leaves {
			if l.split.valid() && (best < 0 || l.split.Gain > leaves[best].split.Gain) {
				best = i
			}
		}
		if best < 0 {
			return nil
		}
		left, right, err := t.split(tree, leaves[best])
		if err != nil {
			return err
		}
		leaves[best] = left
		leaves = append(leaves, right)
	}
	return nil
}

func (t *Trainer) split(tree *Tree, l *leaf) (*leaf, *leaf, error) {
	s := l.split
	bins := t.data.bins[s.Feature]
	leftIdx := make([]int, 0, s.LeftCount)
	rightIdx := make([]int, 0, s.RightCount)
	for _, i := range l.indices {
		if int(bins[i]) <= s.Bin {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	left := &leaf{indices: leftIdx, depth: l.depth + 1, sumGrad: s.LeftGrad, sumHess: s.LeftHess}
	right := &leaf{indices: rightIdx, depth: l.depth + 1, sumGrad: s.RightGrad, sumHess: s.RightHess}
	left.node = t.addLeaf(tree, left)
	right.node = t.addLeaf(tree, right)

	node := &tree.Nodes[l.node]
	node.SplitFeature = s.Feature
	node.Threshold = s.Threshold
	node.Gain = s.Gain
	node.LeftChild = left.node
	node.RightChild = right.node

	var err error
	if left.split, err = t.findBestSplit(left); err != nil {
		return nil, nil, err
	}
	if right.split, err = t.findBestSplit(right); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (t *Trainer) addLeaf(tree *Tree, l *leaf) int {
	tree.Nodes = append(tree.Nodes, Node{
		SplitFeature:  -1,
		LeftChild:     -1,
		RightChild:    -1,
		LeafValue:     t.leafValue(l.sumGrad, l.sumHess),
		InternalCount: len(l.indices),
		SumHessian:    l.sumHess,
		Depth:         l.depth,
	})
	return len(tree.Nodes) - 1
}

func (t *Trainer) leafValue(sumGrad, sumHess float64) float64 {
	return -sumGrad / (sumHess + t.params.Lambda + kEpsilon)
}

func (t *Trainer) splitGain(gl, hl, gr, hr float64) float64 {
	lambda := t.params.Lambda
	g, h := gl+gr, hl+hr
	return 0.5 * (gl*gl/(hl+lambda+kEpsilon) + gr*gr/(hr+lambda+kEpsilon) - g*g/(h+lambda+kEpsilon))
}

// findBestSplit scans the histogram of every feature. Features are scanned
// in parallel for large leaves.
func (t *Trainer) findBestSplit(l *leaf) (SplitInfo, error) {
	none := SplitInfo{Feature: -1}
	p := t.params
	if p.MaxDepth > 0 && l.depth >= p.MaxDepth {
		return none, nil
	}
	if len(l.indices) < 2*p.MinDataInLeaf || l.sumHess < 2*p.MinSumHessianInLeaf {
		return none, nil
	}

	nFeatures := len(t.data.bins)
	best := make([]SplitInfo, nFeatures)
	workers := 1
	if len(l.indices)*nFeatures >= 1<<15 {
		workers = runtime.GOMAXPROCS(0)
	}
	err := parallel.ForEach(nFeatures, workers, func(j int) error {
		best[j] = t.bestSplitForFeature(l, j)
		return nil
	})
	if err != nil {
		return none, errors.Wrapf(err, "split search at depth %d", l.depth)
	}

	result := none
	for _, s := range best {
		if s.valid() && (!result.valid() || s.Gain > result.Gain) {
			result = s
		}
	}
	return result, nil
}

func (t *Trainer) bestSplitForFeature(l *leaf, feature int) SplitInfo {
	p := t.params
	mapper := t.data.mappers[feature]
	hist := newHistogram(mapper.NumBins())
	hist.add(t.data.bins[feature], l.indices, t.grad, t.hess)

	best := SplitInfo{Feature: -1, Gain: p.MinGainToSplit + kEpsilon}
	var gl, hl float64
	var cl int
	total := len(l.indices)
	for b := 0; b < mapper.NumBins()-1; b++ {
		gl += hist.SumGrad[b]
		hl += hist.SumHess[b]
		cl += hist.Count[b]
		cr := total - cl
		if cl < p.MinDataInLeaf {
			continue
		}
		if cr < p.MinDataInLeaf {
			break
		}
		gr, hr := l.sumGrad-gl, l.sumHess-hl
		if hl < p.MinSumHessianInLeaf || hr < p.MinSumHessianInLeaf {
			continue
		}
		if gain := t.splitGain(gl, hl, gr, hr); gain > best.Gain {
			best = SplitInfo{
				Feature:    feature,
				Bin:        b,
				Threshold:  mapper.UpperBounds[b],
				Gain:       gain,
				LeftGrad:   gl,
				LeftHess:   hl,
				RightGrad:  gr,
				RightHess:  hr,
				LeftCount:  cl,
				RightCount: cr,
			}
		}
	}
	return best
}
