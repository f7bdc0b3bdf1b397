package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// R2Score is the coefficient of determination of pred against actual. A
// constant target scores 1 when predicted exactly and 0 otherwise.
func R2Score(actual, pred []float64) (float64, error) {
	if err := checkPairs(actual, pred); err != nil {
		return 0, err
	}
	mean := stat.Mean(actual, nil)
	var ssRes, ssTot float64
	for i, y := range actual {
		ssRes += (y - pred[i]) * (y - pred[i])
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}

// MeanAbsoluteError returns the mean of |y - pred|.
func MeanAbsoluteError(actual, pred []float64) (float64, error) {
	if err := checkPairs(actual, pred); err != nil {
		return 0, err
	}
	sum := 0.0
	for i, y := range actual {
		sum += math.Abs(y - pred[i])
	}
	return sum / float64(len(actual)), nil
}

// RootMeanSquaredError returns sqrt(mean((y - pred)^2)).
func RootMeanSquaredError(actual, pred []float64) (float64, error) {
	if err := checkPairs(actual, pred); err != nil {
		return 0, err
	}
	sum := 0.0
	for i, y := range actual {
		sum += (y - pred[i]) * (y - pred[i])
	}
	return math.Sqrt(sum / float64(len(actual))), nil
}

func checkPairs(actual, pred []float64) error {
	if len(actual) == 0 {
		return fmt.Errorf("no values to score")
	}
	if len(actual) != len(pred) {
		return fmt.Errorf("length mismatch: %d actual, %d predicted", len(actual), len(pred))
	}
	for _, v := range pred {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errNotFinite
		}
	}
	return nil
}
