package ml

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

const (
	KindRandomForest     = "random_forest"
	KindGradientBoosting = "gradient_boosting"
)

// RandomForest averages regression trees grown on bootstrap samples.
type RandomForest struct {
	nEstimators    int
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    float64
	randomState    int64

	Trees       []*DecisionTree `json:"trees"`
	NumFeatures int             `json:"num_features"`
}

// NewRandomForest returns a forest with 100 trees and seed 42.
func NewRandomForest() *RandomForest {
	return &RandomForest{nEstimators: 100, minSamplesLeaf: 1, maxFeatures: 1, randomState: 42}
}

func (rf *RandomForest) Kind() string { return KindRandomForest }

func (rf *RandomForest) Params() Params {
	return Params{
		"n_estimators":     rf.nEstimators,
		"max_depth":        rf.maxDepth,
		"min_samples_leaf": rf.minSamplesLeaf,
		"max_features":     rf.maxFeatures,
		"random_state":     rf.randomState,
	}
}

func (rf *RandomForest) SetParams(params Params) error {
	for name, value := range params {
		switch name {
		case "max_features":
			v, err := paramFloat(name, value)
			if err != nil {
				return err
			}
			if v <= 0 || v > 1 {
				return fmt.Errorf("parameter %q must be in (0, 1]", name)
			}
			rf.maxFeatures = v
			continue
		}

		v, err := paramInt(name, value)
		if err != nil {
			return err
		}
		switch name {
		case "n_estimators":
			if v < 1 {
				return fmt.Errorf("parameter %q must be >= 1", name)
			}
			rf.nEstimators = v
		case "max_depth":
			if v < 0 {
				return fmt.Errorf("parameter %q must be >= 0", name)
			}
			rf.maxDepth = v
		case "min_samples_leaf":
			if v < 1 {
				return fmt.Errorf("parameter %q must be >= 1", name)
			}
			rf.minSamplesLeaf = v
		case "random_state":
			rf.randomState = int64(v)
		default:
			return unknownParam(rf.Kind(), name)
		}
	}
	return nil
}

func (rf *RandomForest) Fit(X mat.Matrix, y []float64) error {
	n, cols, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}
	rows := toRows(X)
	rng := rand.New(rand.NewSource(rf.randomState))

	var features func() []int
	if k := int(math.Round(rf.maxFeatures * float64(cols))); rf.maxFeatures < 1 && k < cols {
		if k < 1 {
			k = 1
		}
		features = func() []int { return rng.Perm(cols)[:k] }
	}

	trees := make([]*DecisionTree, rf.nEstimators)
	for t := range trees {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		tree := &DecisionTree{maxDepth: rf.maxDepth, minSamplesSplit: 2, minSamplesLeaf: rf.minSamplesLeaf}
		tree.fitRows(rows, y, sample, features)
		trees[t] = tree
	}

	rf.Trees = trees
	rf.NumFeatures = cols
	return nil
}

func (rf *RandomForest) Predict(X mat.Matrix) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, errNotFitted
	}
	rows, _ := X.Dims()
	out := make([]float64, rows)
	for _, tree := range rf.Trees {
		preds, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}
		for i, v := range preds {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(rf.Trees))
	}
	return out, nil
}

// GradientBoosting fits shallow trees to the residuals of the running
// prediction, starting from the target mean.
type GradientBoosting struct {
	nEstimators  int
	learningRate float64
	maxDepth     int

	Init         float64         `json:"init"`
	LearningRate float64         `json:"learning_rate"`
	Trees        []*DecisionTree `json:"trees"`
}

// NewGradientBoosting returns 100 depth-3 stages at learning rate 0.1.
func NewGradientBoosting() *GradientBoosting {
	return &GradientBoosting{nEstimators: 100, learningRate: 0.1, maxDepth: 3}
}

func (gb *GradientBoosting) Kind() string { return KindGradientBoosting }

func (gb *GradientBoosting) Params() Params {
	return Params{
		"n_estimators":  gb.nEstimators,
		"learning_rate": gb.learningRate,
		"max_depth":     gb.maxDepth,
	}
}

func (gb *GradientBoosting) SetParams(params Params) error {
	for name, value := range params {
		switch name {
		case "learning_rate":
			v, err := paramFloat(name, value)
			if err != nil {
				return err
			}
			if v <= 0 {
				return fmt.Errorf("parameter %q must be > 0", name)
			}
			gb.learningRate = v
		case "n_estimators", "max_depth":
			v, err := paramInt(name, value)
			if err != nil {
				return err
			}
			if v < 1 {
				return fmt.Errorf("parameter %q must be >= 1", name)
			}
			if name == "n_estimators" {
				gb.nEstimators = v
			} else {
				gb.maxDepth = v
			}
		default:
			return unknownParam(gb.Kind(), name)
		}
	}
	return nil
}

func (gb *GradientBoosting) Fit(X mat.Matrix, y []float64) error {
	n, _, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}
	rows := toRows(X)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	init := meanAt(y, indices)
	current := make([]float64, n)
	for i := range current {
		current[i] = init
	}
	residuals := make([]float64, n)
	trees := make([]*DecisionTree, 0, gb.nEstimators)

	for m := 0; m < gb.nEstimators; m++ {
		for i := range residuals {
			residuals[i] = y[i] - current[i]
		}
		tree := &DecisionTree{maxDepth: gb.maxDepth, minSamplesSplit: 2, minSamplesLeaf: 1}
		tree.fitRows(rows, residuals, indices, nil)
		for i, row := range rows {
			v, err := tree.predictRow(row)
			if err != nil {
				return err
			}
			current[i] += gb.learningRate * v
		}
		trees = append(trees, tree)
	}

	gb.Init = init
	gb.LearningRate = gb.learningRate
	gb.Trees = trees
	return nil
}

func (gb *GradientBoosting) Predict(X mat.Matrix) ([]float64, error) {
	if gb.Trees == nil {
		return nil, errNotFitted
	}
	rows, _ := X.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = gb.Init
	}
	for _, tree := range gb.Trees {
		preds, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}
		for i, v := range preds {
			out[i] += gb.LearningRate * v
		}
	}
	return out, nil
}
