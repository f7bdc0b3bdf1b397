package ml

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const DefaultFolds = 3

// ParamGrid maps a hyperparameter name to its candidate values.
type ParamGrid map[string][]any

func (g ParamGrid) valid() bool {
	if len(g) == 0 {
		return false
	}
	for _, values := range g {
		if len(values) == 0 {
			return false
		}
	}
	return true
}

// Report maps a model identifier to its R2 on the test set.
type Report map[string]float64

// ModelResult is the outcome of tuning one model.
type ModelResult struct {
	Model      string  `json:"model"`
	Kind       string  `json:"kind"`
	BestParams Params  `json:"best_params"`
	CVScore    float64 `json:"cv_score"`
	TrainR2    float64 `json:"train_r2"`
	TestR2     float64 `json:"test_r2"`
}

// Evaluation holds every model result in evaluation order.
type Evaluation struct {
	Results []ModelResult
	Report  Report
}

// Best returns the result with the highest test R2. Ties go to the model
// evaluated first.
func (e *Evaluation) Best() (ModelResult, bool) {
	if len(e.Results) == 0 {
		return ModelResult{}, false
	}
	best := e.Results[0]
	for _, r := range e.Results[1:] {
		if r.TestR2 > best.TestR2 {
			best = r
		}
	}
	return best, true
}

// Evaluator grid-searches each model with contiguous k-fold cross
// validation, refits it on the full training set with the winning
// parameters and scores it on the test set.
type Evaluator struct {
	Folds  int
	Logger *zap.Logger
}

// EvaluateModels runs a default Evaluator and returns only the test R2 per
// model. Estimators are left fitted with their best parameters.
func EvaluateModels(trainX mat.Matrix, trainY []float64, testX mat.Matrix, testY []float64,
	models map[string]Estimator, paramGrids map[string]ParamGrid) (Report, error) {
	ev, err := (&Evaluator{}).Evaluate(context.Background(), trainX, trainY, testX, testY, models, paramGrids)
	if err != nil {
		return nil, err
	}
	return ev.Report, nil
}

// Evaluate tunes and scores every model. Grids are checked before any
// fitting starts, and the first failure aborts the run.
func (e *Evaluator) Evaluate(ctx context.Context, trainX mat.Matrix, trainY []float64, testX mat.Matrix, testY []float64,
	models map[string]Estimator, paramGrids map[string]ParamGrid) (*Evaluation, error) {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	folds := e.Folds
	if folds == 0 {
		folds = DefaultFolds
	}

	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !paramGrids[name].valid() {
			return nil, &ConfigurationError{Model: name}
		}
	}

	ev := &Evaluation{Report: make(Report, len(names))}
	for _, name := range names {
		result, err := e.evaluateModel(ctx, name, models[name], paramGrids[name], folds, trainX, trainY, testX, testY)
		if err != nil {
			return nil, err
		}
		logger.Info("model evaluated",
			zap.String("model", name),
			zap.Any("best_params", result.BestParams),
			zap.Float64("cv_score", result.CVScore),
			zap.Float64("train_r2", result.TrainR2),
			zap.Float64("test_r2", result.TestR2))
		ev.Results = append(ev.Results, result)
		ev.Report[name] = result.TestR2
	}
	return ev, nil
}

func (e *Evaluator) evaluateModel(ctx context.Context, name string, model Estimator, grid ParamGrid, folds int,
	trainX mat.Matrix, trainY []float64, testX mat.Matrix, testY []float64) (ModelResult, error) {
	fail := func(stage string, err error) (ModelResult, error) {
		return ModelResult{}, &EvaluationError{Model: name, Stage: stage, Err: err}
	}

	splits, err := kFold(len(trainY), folds)
	if err != nil {
		return fail(StageFit, err)
	}

	var best Params
	bestScore := 0.0
	for _, combo := range gridCombinations(grid) {
		select {
		case <-ctx.Done():
			return ModelResult{}, fmt.Errorf("evaluation cancelled: %w", ctx.Err())
		default:
		}

		if err := model.SetParams(combo); err != nil {
			return fail(StageSetParams, err)
		}
		score, stage, err := crossValidate(model, trainX, trainY, splits)
		if err != nil {
			return fail(stage, err)
		}
		if best == nil || score > bestScore {
			best, bestScore = combo, score
		}
	}

	if err := model.SetParams(best); err != nil {
		return fail(StageSetParams, err)
	}
	if err := model.Fit(trainX, trainY); err != nil {
		return fail(StageFit, err)
	}
	trainR2, err := scoreModel(model, trainX, trainY)
	if err != nil {
		return fail(StageScore, err)
	}
	testR2, err := scoreModel(model, testX, testY)
	if err != nil {
		return fail(StageScore, err)
	}

	return ModelResult{
		Model:      name,
		Kind:       model.Kind(),
		BestParams: best,
		CVScore:    bestScore,
		TrainR2:    trainR2,
		TestR2:     testR2,
	}, nil
}

type foldSplit struct {
	train, validate []int
}

// kFold splits n samples into k contiguous validation folds. The first n%k
// folds take one extra sample.
func kFold(n, k int) ([]foldSplit, error) {
	if k < 2 {
		return nil, fmt.Errorf("folds must be >= 2, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("cannot split %d samples into %d folds", n, k)
	}
	splits := make([]foldSplit, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size
		split := foldSplit{}
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				split.validate = append(split.validate, i)
			} else {
				split.train = append(split.train, i)
			}
		}
		splits = append(splits, split)
		start = end
	}
	return splits, nil
}

// crossValidate returns the mean validation R2 over the splits.
func crossValidate(model Estimator, X mat.Matrix, y []float64, splits []foldSplit) (float64, string, error) {
	total := 0.0
	for _, split := range splits {
		if err := model.Fit(selectRows(X, split.train), pick(y, split.train)); err != nil {
			return 0, StageFit, err
		}
		score, err := scoreModel(model, selectRows(X, split.validate), pick(y, split.validate))
		if err != nil {
			return 0, StageScore, err
		}
		total += score
	}
	return total / float64(len(splits)), "", nil
}

func scoreModel(model Estimator, X mat.Matrix, y []float64) (float64, error) {
	pred, err := model.Predict(X)
	if err != nil {
		return 0, err
	}
	return R2Score(y, pred)
}

// gridCombinations expands a grid into every parameter assignment. Names
// are visited in sorted order so the enumeration is stable.
func gridCombinations(grid ParamGrid) []Params {
	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)

	var combinations []Params
	collectCombinations(grid, names, 0, Params{}, &combinations)
	return combinations
}

func collectCombinations(grid ParamGrid, names []string, index int, current Params, combinations *[]Params) {
	if index == len(names) {
		combo := make(Params, len(current))
		for k, v := range current {
			combo[k] = v
		}
		*combinations = append(*combinations, combo)
		return
	}
	name := names[index]
	for _, value := range grid[name] {
		current[name] = value
		collectCombinations(grid, names, index+1, current, combinations)
	}
}

func selectRows(X mat.Matrix, indices []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for r, i := range indices {
		for j := 0; j < cols; j++ {
			out.Set(r, j, X.At(i, j))
		}
	}
	return out
}

func pick(y []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for r, i := range indices {
		out[r] = y[i]
	}
	return out
}
