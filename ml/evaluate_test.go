package ml

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// interleavedLine returns y = 2x over a shuffled x in [0, n) so contiguous
// folds never extrapolate far.
func interleavedLine(n int) (*mat.Dense, []float64) {
	X := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64((i * 7) % n)
		X.Set(i, 0, x)
		y[i] = 2 * x
	}
	return X, y
}

func TestEvaluateModelsMissingGrid(t *testing.T) {
	X, y := interleavedLine(30)
	models := map[string]Estimator{
		"Linear Regression": NewLinearRegression(),
		"Decision Tree":     NewDecisionTree(),
	}
	grids := map[string]ParamGrid{
		"Linear Regression": {"fit_intercept": {true}},
	}

	report, err := EvaluateModels(X, y, X, y, models, grids)
	assert.Nil(t, report)
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "Decision Tree", cerr.Model)
}

func TestEvaluateModelsEmptyGridValues(t *testing.T) {
	X, y := interleavedLine(30)
	_, err := EvaluateModels(X, y, X, y,
		map[string]Estimator{"knn": NewKNeighbors()},
		map[string]ParamGrid{"knn": {"n_neighbors": {}}})
	var cerr *ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestEvaluateModelsReport(t *testing.T) {
	trainX, trainY := interleavedLine(30)
	testX := mat.NewDense(3, 1, []float64{2.5, 10.5, 20.5})
	testY := []float64{5, 21, 41}

	linear := NewLinearRegression()
	models := map[string]Estimator{
		"Linear Regression": linear,
		"K-Neighbors":       NewKNeighbors(),
	}
	grids := map[string]ParamGrid{
		"Linear Regression": {"fit_intercept": {true, false}},
		"K-Neighbors":       {"n_neighbors": {1, 3}},
	}

	report, err := EvaluateModels(trainX, trainY, testX, testY, models, grids)
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.InDelta(t, 1.0, report["Linear Regression"], 1e-9)
	assert.Greater(t, report["K-Neighbors"], 0.9)

	// Estimators are left fitted with their winning parameters.
	pred, err := linear.Predict(mat.NewDense(1, 1, []float64{100}))
	require.NoError(t, err)
	assert.InDelta(t, 200, pred[0], 1e-8)
}

func TestEvaluatorPicksBestCombination(t *testing.T) {
	X, y := interleavedLine(30)
	knn := NewKNeighbors()

	ev, err := (&Evaluator{}).Evaluate(context.Background(), X, y, X, y,
		map[string]Estimator{"knn": knn},
		map[string]ParamGrid{"knn": {"n_neighbors": {20, 1}}})
	require.NoError(t, err)

	require.Len(t, ev.Results, 1)
	result := ev.Results[0]
	assert.Equal(t, "knn", result.Model)
	assert.Equal(t, KindKNeighbors, result.Kind)
	assert.Equal(t, 1, result.BestParams["n_neighbors"])
	assert.Equal(t, 1, knn.Params()["n_neighbors"])
	assert.Equal(t, 1.0, result.TrainR2)
	assert.Equal(t, result.TestR2, ev.Report["knn"])

	best, ok := ev.Best()
	require.True(t, ok)
	assert.Equal(t, "knn", best.Model)
}

func TestEvaluatorSetParamsFailure(t *testing.T) {
	X, y := interleavedLine(30)
	_, err := (&Evaluator{}).Evaluate(context.Background(), X, y, X, y,
		map[string]Estimator{"tree": NewDecisionTree()},
		map[string]ParamGrid{"tree": {"max_leaf_nodes": {4}}})

	var eerr *EvaluationError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "tree", eerr.Model)
	assert.Equal(t, StageSetParams, eerr.Stage)
}

func TestEvaluatorTooFewSamples(t *testing.T) {
	X, y := interleavedLine(2)
	_, err := (&Evaluator{Folds: 3}).Evaluate(context.Background(), X, y, X, y,
		map[string]Estimator{"linear": NewLinearRegression()},
		map[string]ParamGrid{"linear": {"alpha": {0.0}}})

	var eerr *EvaluationError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, StageFit, eerr.Stage)
}

func TestEvaluatorCancelled(t *testing.T) {
	X, y := interleavedLine(30)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Evaluator{}).Evaluate(ctx, X, y, X, y,
		map[string]Estimator{"linear": NewLinearRegression()},
		map[string]ParamGrid{"linear": {"alpha": {0.0}}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGridCombinationsOrder(t *testing.T) {
	combos := gridCombinations(ParamGrid{
		"n_neighbors": {1, 2},
		"alpha":       {"x", "y"},
	})
	assert.Equal(t, []Params{
		{"alpha": "x", "n_neighbors": 1},
		{"alpha": "x", "n_neighbors": 2},
		{"alpha": "y", "n_neighbors": 1},
		{"alpha": "y", "n_neighbors": 2},
	}, combos)
}

func TestKFoldContiguous(t *testing.T) {
	splits, err := kFold(10, 3)
	require.NoError(t, err)
	require.Len(t, splits, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, splits[0].validate)
	assert.Equal(t, []int{4, 5, 6}, splits[1].validate)
	assert.Equal(t, []int{7, 8, 9}, splits[2].validate)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, splits[1].train)

	_, err = kFold(10, 1)
	assert.Error(t, err)
}
