package gbdt

import (
	"gonum.org/v1/gonum/mat"
)

// Node is one node of a boosted tree. Leaves have LeftChild and RightChild
// set to -1.
type Node struct {
	SplitFeature int     `json:"split_feature"`
	Threshold    float64 `json:"threshold"`
	LeftChild    int     `json:"left_child"`
	RightChild   int     `json:"right_child"`
	Gain         float64 `json:"gain,omitempty"`

	LeafValue     float64 `json:"leaf_value"`
	InternalCount int     `json:"internal_count"`
	SumHessian    float64 `json:"sum_hessian"`
	Depth         int     `json:"depth"`
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is one boosting round.
type Tree struct {
	TreeIndex     int     `json:"tree_index"`
	NumLeaves     int     `json:"num_leaves"`
	ShrinkageRate float64 `json:"shrinkage"`
	Nodes         []Node  `json:"nodes"`
}

// Predict returns the shrunk leaf value for one sample.
func (t *Tree) Predict(features []float64) float64 {
	id := 0
	for {
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		if features[node.SplitFeature] <= node.Threshold {
			id = node.LeftChild
		} else {
			id = node.RightChild
		}
	}
}

// MaxDepth returns the depth of the deepest leaf.
func (t *Tree) MaxDepth() int {
	d := 0
	for i := range t.Nodes {
		if t.Nodes[i].Depth > d {
			d = t.Nodes[i].Depth
		}
	}
	return d
}

// Model is a trained booster.
type Model struct {
	Trees         []Tree         `json:"trees"`
	InitScore     float64        `json:"init_score"`
	NumFeatures   int            `json:"num_features"`
	BestIteration int            `json:"best_iteration"`
	Params        TrainingParams `json:"params"`
}

// NumIterations returns the number of trees.
func (m *Model) NumIterations() int { return len(m.Trees) }

// PredictSingle sums the first numIteration trees; numIteration <= 0 uses
// all of them.
func (m *Model) PredictSingle(features []float64, numIteration int) float64 {
	limit := len(m.Trees)
	if numIteration > 0 && numIteration < limit {
		limit = numIteration
	}
	pred := m.InitScore
	for i := 0; i < limit; i++ {
		pred += m.Trees[i].Predict(features)
	}
	return pred
}

// PredictRows predicts every row with the first numIteration trees.
func (m *Model) PredictRows(rows [][]float64, numIteration int) *mat.VecDense {
	out := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		out.SetVec(i, m.PredictSingle(r, numIteration))
	}
	return out
}

// StagedPredictRows calls fn after each tree with the running prediction.
// pred is reused between calls.
func (m *Model) StagedPredictRows(rows [][]float64, fn func(iteration int, pred *mat.VecDense) bool) {
	pred := mat.NewVecDense(len(rows), nil)
	raw := pred.RawVector().Data
	for i := range raw {
		raw[i] = m.InitScore
	}
	for it := range m.Trees {
		t := &m.Trees[it]
		for i, r := range rows {
			raw[i] += t.Predict(r)
		}
		if !fn(it, pred) {
			return
		}
	}
}
