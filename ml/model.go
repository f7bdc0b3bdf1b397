package ml

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Params maps hyperparameter names to values. Values coming from yaml or
// JSON may be any numeric type; estimators convert them on SetParams.
type Params map[string]any

// Estimator is a regression model with settable hyperparameters.
type Estimator interface {
	Kind() string
	Fit(X mat.Matrix, y []float64) error
	Predict(X mat.Matrix) ([]float64, error)
	SetParams(params Params) error
	Params() Params
}

var registry = map[string]func() Estimator{}

// RegisterEstimator makes an estimator kind available to NewEstimator and
// to SavedModel decoding.
func RegisterEstimator(kind string, factory func() Estimator) {
	registry[kind] = factory
}

// NewEstimator returns an unfitted estimator with default parameters.
func NewEstimator(kind string) (Estimator, error) {
	factory, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported model type %q", kind)
	}
	return factory(), nil
}

// EstimatorKinds lists the registered kinds in sorted order.
func EstimatorKinds() []string {
	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func init() {
	RegisterEstimator(KindLinearRegression, func() Estimator { return NewLinearRegression() })
	RegisterEstimator(KindDecisionTree, func() Estimator { return NewDecisionTree() })
	RegisterEstimator(KindRandomForest, func() Estimator { return NewRandomForest() })
	RegisterEstimator(KindGradientBoosting, func() Estimator { return NewGradientBoosting() })
	RegisterEstimator(KindKNeighbors, func() Estimator { return NewKNeighbors() })
}

func checkTrainingSet(X mat.Matrix, y []float64) (int, int, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, fmt.Errorf("features are empty")
	}
	if rows != len(y) {
		return 0, 0, fmt.Errorf("features and targets size mismatch: %d rows, %d targets", rows, len(y))
	}
	return rows, cols, nil
}

func toRows(X mat.Matrix) [][]float64 {
	rows, cols := X.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			row[j] = X.At(i, j)
		}
		out[i] = row
	}
	return out
}

func unknownParam(kind, name string) error {
	return fmt.Errorf("%s: unknown parameter %q", kind, name)
}

func paramInt(name string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("parameter %q: %v is not an integer", name, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %w", name, err)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("parameter %q: unsupported type %T", name, value)
	}
}

func paramFloat(name string, value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %w", name, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("parameter %q: unsupported type %T", name, value)
	}
}

func paramBool(name string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("parameter %q: %w", name, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("parameter %q: unsupported type %T", name, value)
	}
}

func paramString(name string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q: unsupported type %T", name, value)
	}
	return s, nil
}
