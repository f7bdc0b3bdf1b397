package ml

import (
	"context"
	"fmt"
	"path/filepath"

	"scorecast/artifact"
)

const (
	DefaultPreprocessorFile = "preprocessor.json"
	DefaultModelFile        = "model.json"
)

// PredictPipeline loads the persisted preprocessor and model on every call
// and runs a frame through them.
type PredictPipeline struct {
	PreprocessorPath string
	ModelPath        string
}

// NewPredictPipeline points the pipeline at the default artifact files
// inside dir.
func NewPredictPipeline(dir string) *PredictPipeline {
	return &PredictPipeline{
		PreprocessorPath: filepath.Join(dir, DefaultPreprocessorFile),
		ModelPath:        filepath.Join(dir, DefaultModelFile),
	}
}

// Predict returns one prediction per frame row.
func (p *PredictPipeline) Predict(ctx context.Context, frame *Frame) ([]float64, error) {
	var preprocessor Preprocessor
	if err := artifact.Load(p.PreprocessorPath, &preprocessor); err != nil {
		return nil, &InferenceError{Stage: StageLoadPreprocessor, Err: err}
	}
	var model SavedModel
	if err := artifact.Load(p.ModelPath, &model); err != nil {
		return nil, &InferenceError{Stage: StageLoadModel, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &InferenceError{Stage: StagePredict, Err: err}
	}

	features, err := preprocessor.Transform(frame)
	if err != nil {
		return nil, &InferenceError{Stage: StageTransform, Err: err}
	}
	preds, err := model.Estimator.Predict(features)
	if err != nil {
		return nil, &InferenceError{Stage: StagePredict, Err: err}
	}
	if rows := frame.NumRows(); len(preds) != rows {
		return nil, &InferenceError{Stage: StagePredict, Err: fmt.Errorf("model returned %d predictions for %d rows", len(preds), rows)}
	}
	return preds, nil
}

// Ready reports whether both artifact files are present.
func (p *PredictPipeline) Ready() error {
	for _, path := range []string{p.PreprocessorPath, p.ModelPath} {
		if !artifact.Exists(path) {
			return &InferenceError{Stage: StageLoadModel, Err: fmt.Errorf("artifact %s not found", path)}
		}
	}
	return nil
}
