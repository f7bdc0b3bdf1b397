package ml

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func linearData() (*mat.Dense, []float64) {
	X := mat.NewDense(8, 2, []float64{
		1, 2,
		2, 1,
		3, 5,
		4, 3,
		5, 8,
		6, 2,
		7, 7,
		8, 4,
	})
	y := make([]float64, 8)
	for i := range y {
		y[i] = 3*X.At(i, 0) - 2*X.At(i, 1) + 5
	}
	return X, y
}

func stepData() (*mat.Dense, []float64) {
	X := mat.NewDense(10, 1, nil)
	y := make([]float64, 10)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		if i >= 5 {
			y[i] = 10
		}
	}
	return X, y
}

func TestLinearRegressionRecoversCoefficients(t *testing.T) {
	X, y := linearData()
	model := NewLinearRegression()
	require.NoError(t, model.Fit(X, y))

	assert.InDelta(t, 3, model.Coefficients[0], 1e-8)
	assert.InDelta(t, -2, model.Coefficients[1], 1e-8)
	assert.InDelta(t, 5, model.Intercept, 1e-8)

	pred, err := model.Predict(mat.NewDense(1, 2, []float64{10, 10}))
	require.NoError(t, err)
	assert.InDelta(t, 15, pred[0], 1e-8)

	_, err = model.Predict(mat.NewDense(1, 3, nil))
	assert.Error(t, err)
}

func TestLinearRegressionRidgeShrinks(t *testing.T) {
	X, y := linearData()
	ols := NewLinearRegression()
	require.NoError(t, ols.Fit(X, y))

	ridge := NewLinearRegression()
	require.NoError(t, ridge.SetParams(Params{"alpha": 100.0}))
	require.NoError(t, ridge.Fit(X, y))

	assert.Less(t, abs(ridge.Coefficients[0]), abs(ols.Coefficients[0]))
}

func TestLinearRegressionRankDeficient(t *testing.T) {
	// Two one-hot columns always sum to one, so with an intercept the
	// design is singular.
	X := mat.NewDense(4, 2, []float64{1, 0, 0, 1, 1, 0, 0, 1})
	y := []float64{10, 20, 10, 20}
	model := NewLinearRegression()
	require.NoError(t, model.Fit(X, y))

	pred, err := model.Predict(X)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], pred[i], 1e-8)
	}
}

func TestDecisionTreeSplitsStep(t *testing.T) {
	X, y := stepData()
	model := NewDecisionTree()
	require.NoError(t, model.Fit(X, y))

	pred, err := model.Predict(mat.NewDense(2, 1, []float64{2, 7}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10}, pred)

	root := model.Nodes[0]
	assert.False(t, root.IsLeaf)
	assert.Equal(t, 4.5, root.Threshold)
}

func TestDecisionTreeMaxDepth(t *testing.T) {
	X, y := linearData()
	model := NewDecisionTree()
	require.NoError(t, model.SetParams(Params{"max_depth": 1}))
	require.NoError(t, model.Fit(X, y))
	assert.Len(t, model.Nodes, 3)
}

func TestDecisionTreeUnfitted(t *testing.T) {
	_, err := NewDecisionTree().Predict(mat.NewDense(1, 1, nil))
	assert.ErrorIs(t, err, errNotFitted)
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := stepData()
	params := Params{"n_estimators": 10, "random_state": 7}

	a := NewRandomForest()
	require.NoError(t, a.SetParams(params))
	require.NoError(t, a.Fit(X, y))
	b := NewRandomForest()
	require.NoError(t, b.SetParams(params))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.Predict(X)
	require.NoError(t, err)
	pb, err := b.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	assert.Len(t, a.Trees, 10)

	assert.Less(t, pa[0], pa[9])
}

func TestGradientBoostingFitsStep(t *testing.T) {
	X, y := stepData()
	model := NewGradientBoosting()
	require.NoError(t, model.SetParams(Params{"n_estimators": 50, "learning_rate": 0.5}))
	require.NoError(t, model.Fit(X, y))

	pred, err := model.Predict(X)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], pred[i], 1e-3)
	}
	assert.InDelta(t, 5, model.Init, 1e-12)
}

func TestKNeighbors(t *testing.T) {
	X, y := stepData()

	model := NewKNeighbors()
	require.NoError(t, model.SetParams(Params{"n_neighbors": 1}))
	require.NoError(t, model.Fit(X, y))
	pred, err := model.Predict(mat.NewDense(2, 1, []float64{3.2, 6.9}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10}, pred)

	require.NoError(t, model.SetParams(Params{"n_neighbors": 2, "weights": WeightsDistance}))
	pred, err = model.Predict(mat.NewDense(2, 1, []float64{4.25, 5}))
	require.NoError(t, err)
	// 4.25 is three times closer to 4 than to 5.
	assert.InDelta(t, 2.5, pred[0], 1e-9)
	// Exact match takes all the weight.
	assert.Equal(t, 10.0, pred[1])

	assert.Error(t, model.SetParams(Params{"weights": "gaussian"}))
}

func TestSetParamsRejectsUnknown(t *testing.T) {
	for _, kind := range EstimatorKinds() {
		est, err := NewEstimator(kind)
		require.NoError(t, err)
		assert.Error(t, est.SetParams(Params{"bogus": 1}), kind)
	}
	_, err := NewEstimator("svm")
	assert.Error(t, err)
}

func TestParamConversions(t *testing.T) {
	model := NewDecisionTree()
	require.NoError(t, model.SetParams(Params{"max_depth": 4.0, "min_samples_leaf": int64(2)}))
	assert.Equal(t, 4, model.Params()["max_depth"])
	assert.Equal(t, 2, model.Params()["min_samples_leaf"])

	assert.Error(t, model.SetParams(Params{"max_depth": 2.5}))
	assert.Error(t, model.SetParams(Params{"max_depth": -1}))
}

func TestSavedModelRoundTrip(t *testing.T) {
	X, y := linearData()
	for _, kind := range EstimatorKinds() {
		t.Run(kind, func(t *testing.T) {
			est, err := NewEstimator(kind)
			require.NoError(t, err)
			if kind == KindRandomForest || kind == KindGradientBoosting {
				require.NoError(t, est.SetParams(Params{"n_estimators": 5}))
			}
			require.NoError(t, est.Fit(X, y))
			want, err := est.Predict(X)
			require.NoError(t, err)

			data, err := json.Marshal(SavedModel{Estimator: est})
			require.NoError(t, err)
			var restored SavedModel
			require.NoError(t, json.Unmarshal(data, &restored))

			assert.Equal(t, kind, restored.Estimator.Kind())
			got, err := restored.Estimator.Predict(X)
			require.NoError(t, err)
			assert.InDeltaSlice(t, want, got, 1e-12)
		})
	}
}

func TestSavedModelUnknownKind(t *testing.T) {
	var restored SavedModel
	err := json.Unmarshal([]byte(`{"kind":"svm","params":{},"state":{}}`), &restored)
	assert.Error(t, err)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
