package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const KindDecisionTree = "decision_tree"

// DecisionTree is a CART regression tree minimizing squared error. Nodes are
// stored flat; child fields index into Nodes.
type DecisionTree struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int

	Nodes       []TreeNode `json:"nodes"`
	NumFeatures int        `json:"num_features"`
}

// TreeNode is a split or, when IsLeaf is set, a constant prediction.
type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

// NewDecisionTree returns an unbounded tree with min_samples_split 2.
func NewDecisionTree() *DecisionTree {
	return &DecisionTree{minSamplesSplit: 2, minSamplesLeaf: 1}
}

func (dt *DecisionTree) Kind() string { return KindDecisionTree }

func (dt *DecisionTree) Params() Params {
	return Params{
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
	}
}

func (dt *DecisionTree) SetParams(params Params) error {
	for name, value := range params {
		v, err := paramInt(name, value)
		if err != nil {
			return err
		}
		switch name {
		case "max_depth":
			if v < 0 {
				return fmt.Errorf("parameter %q must be >= 0", name)
			}
			dt.maxDepth = v
		case "min_samples_split":
			if v < 2 {
				return fmt.Errorf("parameter %q must be >= 2", name)
			}
			dt.minSamplesSplit = v
		case "min_samples_leaf":
			if v < 1 {
				return fmt.Errorf("parameter %q must be >= 1", name)
			}
			dt.minSamplesLeaf = v
		default:
			return unknownParam(dt.Kind(), name)
		}
	}
	return nil
}

func (dt *DecisionTree) Fit(X mat.Matrix, y []float64) error {
	if _, _, err := checkTrainingSet(X, y); err != nil {
		return err
	}
	rows := toRows(X)
	indices := make([]int, len(rows))
	for i := range indices {
		indices[i] = i
	}
	dt.fitRows(rows, y, indices, nil)
	return nil
}

// fitRows grows the tree on the given sample positions. features, when
// non-nil, picks the candidate features at each split.
func (dt *DecisionTree) fitRows(rows [][]float64, y []float64, indices []int, features func() []int) {
	b := &treeBuilder{
		rows:            rows,
		y:               y,
		maxDepth:        dt.maxDepth,
		minSamplesSplit: dt.minSamplesSplit,
		minSamplesLeaf:  dt.minSamplesLeaf,
		features:        features,
	}
	if b.features == nil {
		all := make([]int, len(rows[0]))
		for j := range all {
			all[j] = j
		}
		b.features = func() []int { return all }
	}
	b.build(indices, 0)
	dt.Nodes = b.nodes
	dt.NumFeatures = len(rows[0])
}

func (dt *DecisionTree) Predict(X mat.Matrix) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, errNotFitted
	}
	rows, cols := X.Dims()
	if cols != dt.NumFeatures {
		return nil, fmt.Errorf("decision tree: expected %d features, got %d", dt.NumFeatures, cols)
	}
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		v, err := dt.predictRow(mat.Row(nil, i, X))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (dt *DecisionTree) predictRow(features []float64) (float64, error) {
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

type treeBuilder struct {
	rows            [][]float64
	y               []float64
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	features        func() []int
	nodes           []TreeNode
}

func (b *treeBuilder) build(indices []int, depth int) int {
	pos := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      meanAt(b.y, indices),
		IsLeaf:     true,
	})

	if len(indices) < b.minSamplesSplit || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return pos
	}
	feature, threshold, ok := b.bestSplit(indices)
	if !ok {
		return pos
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		if b.rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftPos := b.build(left, depth+1)
	rightPos := b.build(right, depth+1)
	b.nodes[pos] = TreeNode{
		FeatureIdx: feature,
		Threshold:  threshold,
		LeftChild:  leftPos,
		RightChild: rightPos,
		Value:      b.nodes[pos].Value,
		IsLeaf:     false,
	}
	return pos
}

// bestSplit scans every candidate feature for the threshold with the lowest
// summed squared error of the two children.
func (b *treeBuilder) bestSplit(indices []int) (int, float64, bool) {
	n := len(indices)
	var total, totalSq float64
	for _, i := range indices {
		total += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	parentSSE := totalSq - total*total/float64(n)
	if parentSSE <= 1e-12 {
		return -1, 0, false
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestSSE := parentSSE - 1e-12
	sorted := make([]int, n)

	for _, feature := range b.features() {
		copy(sorted, indices)
		sort.Slice(sorted, func(a, c int) bool {
			return b.rows[sorted[a]][feature] < b.rows[sorted[c]][feature]
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			v := b.y[sorted[k]]
			leftSum += v
			leftSq += v * v

			leftN := k + 1
			rightN := n - leftN
			if leftN < b.minSamplesLeaf || rightN < b.minSamplesLeaf {
				continue
			}
			cur := b.rows[sorted[k]][feature]
			next := b.rows[sorted[k+1]][feature]
			if cur == next {
				continue
			}

			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(leftN)) + (rightSq - rightSum*rightSum/float64(rightN))
			if sse < bestSSE {
				bestSSE = sse
				bestFeature = feature
				bestThreshold = cur + (next-cur)/2
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func meanAt(y []float64, indices []int) float64 {
	if len(indices) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, i := range indices {
		sum += y[i]
	}
	return sum / float64(len(indices))
}
