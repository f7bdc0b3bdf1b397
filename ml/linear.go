package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const KindLinearRegression = "linear_regression"

// LinearRegression is ordinary least squares, or ridge regression when
// alpha > 0. Rank-deficient designs (one-hot columns plus intercept) get
// the minimum-norm solution.
type LinearRegression struct {
	fitIntercept bool
	alpha        float64

	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// NewLinearRegression returns ordinary least squares with an intercept.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{fitIntercept: true}
}

func (m *LinearRegression) Kind() string { return KindLinearRegression }

func (m *LinearRegression) Params() Params {
	return Params{"fit_intercept": m.fitIntercept, "alpha": m.alpha}
}

func (m *LinearRegression) SetParams(params Params) error {
	for name, value := range params {
		switch name {
		case "fit_intercept":
			v, err := paramBool(name, value)
			if err != nil {
				return err
			}
			m.fitIntercept = v
		case "alpha":
			v, err := paramFloat(name, value)
			if err != nil {
				return err
			}
			if v < 0 {
				return fmt.Errorf("parameter %q must be >= 0", name)
			}
			m.alpha = v
		default:
			return unknownParam(m.Kind(), name)
		}
	}
	return nil
}

func (m *LinearRegression) Fit(X mat.Matrix, y []float64) error {
	rows, cols, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}

	xMeans := make([]float64, cols)
	yMean := 0.0
	if m.fitIntercept {
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				xMeans[j] += X.At(i, j)
			}
			xMeans[j] /= float64(rows)
		}
		for _, v := range y {
			yMean += v
		}
		yMean /= float64(rows)
	}

	extra := 0
	if m.alpha > 0 {
		extra = cols
	}
	a := mat.NewDense(rows+extra, cols, nil)
	b := mat.NewDense(rows+extra, 1, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a.Set(i, j, X.At(i, j)-xMeans[j])
		}
		b.Set(i, 0, y[i]-yMean)
	}
	if extra > 0 {
		penalty := math.Sqrt(m.alpha)
		for j := 0; j < cols; j++ {
			a.Set(rows+j, j, penalty)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return errors.New("linear regression: SVD factorization failed")
	}
	coefficients := make([]float64, cols)
	if rank := svd.Rank(1e-10); rank > 0 {
		var beta mat.Dense
		svd.SolveTo(&beta, b, rank)
		for j := 0; j < cols; j++ {
			coefficients[j] = beta.At(j, 0)
		}
	}

	intercept := yMean
	for j := 0; j < cols; j++ {
		intercept -= coefficients[j] * xMeans[j]
	}

	m.Coefficients = coefficients
	m.Intercept = intercept
	return nil
}

func (m *LinearRegression) Predict(X mat.Matrix) ([]float64, error) {
	if m.Coefficients == nil {
		return nil, errNotFitted
	}
	rows, cols := X.Dims()
	if cols != len(m.Coefficients) {
		return nil, fmt.Errorf("linear regression: expected %d features, got %d", len(m.Coefficients), cols)
	}
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		pred := m.Intercept
		for j, coef := range m.Coefficients {
			pred += coef * X.At(i, j)
		}
		out[i] = pred
	}
	return out, nil
}
