package ml

import (
	"errors"
	"fmt"
)

// Error codes reported to API callers.
const (
	CodeValidation    = "validation_error"
	CodeInference     = "inference_error"
	CodeConfiguration = "configuration_error"
	CodeEvaluation    = "evaluation_error"
)

var (
	errMissingField = errors.New("field is required")
	errNotFinite    = errors.New("value is not a finite number")
	errNotFitted    = errors.New("estimator is not fitted")
)

// ValidationError reports a bad or missing request field.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid field %q (value %q): %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Code() string { return CodeValidation }

// Inference stages.
const (
	StageLoadPreprocessor = "load_preprocessor"
	StageLoadModel        = "load_model"
	StageTransform        = "transform"
	StagePredict          = "predict"
)

// InferenceError reports a failure while loading artifacts, transforming
// input or predicting.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed at %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) Code() string { return CodeInference }

// ConfigurationError reports a model registered without a parameter grid.
type ConfigurationError struct {
	Model string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no parameter grid found for model %q", e.Model)
}

func (e *ConfigurationError) Code() string { return CodeConfiguration }

// Evaluation stages.
const (
	StageSetParams = "set_params"
	StageFit       = "fit"
	StageScore     = "score"
)

// EvaluationError reports a fit or scoring failure for one model. It aborts
// the whole evaluation.
type EvaluationError struct {
	Model string
	Stage string
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating model %q failed at %s: %v", e.Model, e.Stage, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func (e *EvaluationError) Code() string { return CodeEvaluation }
