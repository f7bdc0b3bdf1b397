// Package training fits the preprocessor and candidate models on the student
// dataset and persists the winner as the serving artifacts.
package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"scorecast/artifact"
	"scorecast/config"
	"scorecast/dataset"
	"scorecast/db"
	"scorecast/ml"
)

// ErrBelowThreshold is returned when no model reaches the configured
// minimum test R2. Nothing is persisted in that case.
var ErrBelowThreshold = errors.New("no model reached the minimum score")

// LogStore records every evaluated model of a run.
type LogStore interface {
	SaveTrainingLog(ctx context.Context, logs []db.TrainingLog) error
}

// Result summarizes a completed run.
type Result struct {
	Best             ml.ModelResult
	Results          []ml.ModelResult
	TrainRows        int
	TestRows         int
	PreprocessorPath string
	ModelPath        string
}

// ModelTrainer runs one training pass from the configured dataset.
type ModelTrainer struct {
	Training  config.TrainingConfig
	Artifacts config.ArtifactsConfig
	Store     LogStore
	Logger    *zap.Logger
}

// NewModelTrainer reads the training and artifact sections of cfg. store may
// be nil to skip the training log.
func NewModelTrainer(cfg *config.Config, store LogStore, logger *zap.Logger) *ModelTrainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelTrainer{
		Training:  cfg.Training,
		Artifacts: cfg.Artifacts,
		Store:     store,
		Logger:    logger,
	}
}

// Run loads the dataset, evaluates every configured model and saves the
// best preprocessor and model. When a store is set the full evaluation is
// logged, including runs that miss the threshold.
func (t *ModelTrainer) Run(ctx context.Context) (*Result, error) {
	cfg := t.Training
	if cfg.Dataset == "" {
		return nil, errors.New("dataset path is required")
	}
	if cfg.Target == "" {
		return nil, errors.New("target column is required")
	}

	data, err := dataset.LoadCSV(cfg.Dataset, cfg.Encoding)
	if err != nil {
		return nil, err
	}
	if !data.HasColumn(cfg.Target) {
		return nil, fmt.Errorf("dataset %s has no target column %q", cfg.Dataset, cfg.Target)
	}
	t.Logger.Info("dataset loaded",
		zap.String("path", cfg.Dataset),
		zap.Int("rows", data.Len()),
		zap.Strings("columns", data.Header))

	schema := ml.DefaultSchema().Without(cfg.Target)
	frame, y, err := data.Frame(schema, cfg.Target)
	if err != nil {
		return nil, err
	}

	trainIdx, testIdx, err := dataset.TrainTestSplit(frame.NumRows(), cfg.TestRatio, cfg.RandomSeed)
	if err != nil {
		return nil, err
	}
	trainFrame, testFrame := frame.Rows(trainIdx), frame.Rows(testIdx)
	trainY, testY := pick(y, trainIdx), pick(y, testIdx)

	policy := ml.UnknownPolicy(cfg.HandleUnknown)
	if policy == "" {
		policy = ml.UnknownError
	}
	preprocessor := ml.NewPreprocessor(schema, policy)
	trainX, err := preprocessor.FitTransform(trainFrame)
	if err != nil {
		return nil, fmt.Errorf("fit preprocessor: %w", err)
	}
	testX, err := preprocessor.Transform(testFrame)
	if err != nil {
		return nil, fmt.Errorf("transform test set: %w", err)
	}

	models, err := buildModels(cfg.Models)
	if err != nil {
		return nil, err
	}

	evaluator := &ml.Evaluator{Folds: cfg.Folds, Logger: t.Logger}
	evaluation, err := evaluator.Evaluate(ctx, trainX, trainY, testX, testY, models, cfg.ParamGrids)
	if err != nil {
		return nil, err
	}
	best, ok := evaluation.Best()
	if !ok {
		return nil, errors.New("no models evaluated")
	}

	passed := best.TestR2 >= cfg.MinScore
	if err := t.logRun(ctx, evaluation, best.Model, passed, len(trainIdx)); err != nil {
		return nil, err
	}
	if !passed {
		t.Logger.Warn("best model below threshold",
			zap.String("model", best.Model),
			zap.Float64("test_r2", best.TestR2),
			zap.Float64("min_score", cfg.MinScore))
		return nil, fmt.Errorf("%w: %s scored %.4f, need %.4f", ErrBelowThreshold, best.Model, best.TestR2, cfg.MinScore)
	}

	preprocessorPath := t.Artifacts.PreprocessorPath()
	modelPath := t.Artifacts.ModelPath()
	if err := artifact.Save(preprocessorPath, preprocessor); err != nil {
		return nil, err
	}
	if err := artifact.Save(modelPath, ml.SavedModel{Estimator: models[best.Model]}); err != nil {
		return nil, err
	}

	t.Logger.Info("model saved",
		zap.String("model", best.Model),
		zap.String("kind", best.Kind),
		zap.Float64("test_r2", best.TestR2),
		zap.String("path", modelPath))

	return &Result{
		Best:             best,
		Results:          evaluation.Results,
		TrainRows:        len(trainIdx),
		TestRows:         len(testIdx),
		PreprocessorPath: preprocessorPath,
		ModelPath:        modelPath,
	}, nil
}

func (t *ModelTrainer) logRun(ctx context.Context, ev *ml.Evaluation, best string, passed bool, rows int) error {
	if t.Store == nil {
		return nil
	}
	now := time.Now().UTC()
	logs := make([]db.TrainingLog, 0, len(ev.Results))
	for _, r := range ev.Results {
		logs = append(logs, db.TrainingLog{
			ModelName:  r.Model,
			Kind:       r.Kind,
			Params:     r.BestParams,
			CVScore:    r.CVScore,
			TrainR2:    r.TrainR2,
			TestR2:     r.TestR2,
			Selected:   passed && r.Model == best,
			DataPoints: rows,
			TrainedAt:  now,
		})
	}
	if err := t.Store.SaveTrainingLog(ctx, logs); err != nil {
		return fmt.Errorf("save training log: %w", err)
	}
	return nil
}

func buildModels(specs map[string]string) (map[string]ml.Estimator, error) {
	if len(specs) == 0 {
		return nil, errors.New("no models configured")
	}
	models := make(map[string]ml.Estimator, len(specs))
	for name, kind := range specs {
		est, err := ml.NewEstimator(kind)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", name, err)
		}
		models[name] = est
	}
	return models, nil
}

func pick(y []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for i, idx := range indices {
		out[i] = y[idx]
	}
	return out
}
