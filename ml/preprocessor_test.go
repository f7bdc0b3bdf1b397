package ml

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallFrame(t *testing.T) *Frame {
	t.Helper()
	frame := NewFrame()
	require.NoError(t, frame.AddCategorical("lunch", []string{"standard", "free/reduced", "standard", ""}))
	require.NoError(t, frame.AddNumeric("reading_score", []float64{60, 70, math.NaN(), 90}))
	return frame
}

var smallSchema = Schema{Categorical: []string{"lunch"}, Numeric: []string{"reading_score"}}

func TestPreprocessorFitTransform(t *testing.T) {
	p := NewPreprocessor(smallSchema, "")
	assert.Equal(t, UnknownError, p.HandleUnknown)

	out, err := p.FitTransform(smallFrame(t))
	require.NoError(t, err)

	rows, cols := out.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, []string{"reading_score", "lunch=free/reduced", "lunch=standard"}, p.FeatureNames())

	require.Len(t, p.Numeric, 1)
	assert.Equal(t, 70.0, p.Numeric[0].Median)
	assert.InDelta(t, 72.5, p.Numeric[0].Mean, 1e-9)

	// Standardized column has zero mean.
	sum := 0.0
	for i := 0; i < rows; i++ {
		sum += out.At(i, 0)
	}
	assert.InDelta(t, 0, sum, 1e-9)

	// The imputed row equals the median row after scaling.
	assert.InDelta(t, out.At(1, 0), out.At(2, 0), 1e-12)

	// Blank category takes the most frequent value.
	assert.Equal(t, "standard", p.Categorical[0].MostFrequent)
	assert.Equal(t, 0.0, out.At(3, 1))
	assert.Equal(t, 1.0, out.At(3, 2))
}

func TestPreprocessorMedianEvenCount(t *testing.T) {
	frame := NewFrame()
	require.NoError(t, frame.AddCategorical("lunch", []string{"standard", "standard", "standard", "standard", "standard"}))
	require.NoError(t, frame.AddNumeric("reading_score", []float64{4, 1, 3, 2, math.NaN()}))

	p := NewPreprocessor(smallSchema, UnknownError)
	require.NoError(t, p.Fit(frame))
	require.Len(t, p.Numeric, 1)
	assert.Equal(t, 2.5, p.Numeric[0].Median)
}

func TestPreprocessorUnknownCategory(t *testing.T) {
	unseen := NewFrame()
	require.NoError(t, unseen.AddCategorical("lunch", []string{"catered"}))
	require.NoError(t, unseen.AddNumeric("reading_score", []float64{75}))

	t.Run("error", func(t *testing.T) {
		p := NewPreprocessor(smallSchema, UnknownError)
		require.NoError(t, p.Fit(smallFrame(t)))
		_, err := p.Transform(unseen)
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})

	t.Run("ignore", func(t *testing.T) {
		p := NewPreprocessor(smallSchema, UnknownIgnore)
		require.NoError(t, p.Fit(smallFrame(t)))
		out, err := p.Transform(unseen)
		require.NoError(t, err)
		assert.Equal(t, 0.0, out.At(0, 1))
		assert.Equal(t, 0.0, out.At(0, 2))
	})
}

func TestPreprocessorErrors(t *testing.T) {
	p := NewPreprocessor(smallSchema, UnknownError)
	_, err := p.Transform(smallFrame(t))
	assert.Error(t, err, "not fitted")

	missing := NewFrame()
	require.NoError(t, missing.AddNumeric("reading_score", []float64{1}))
	assert.Error(t, p.Fit(missing))

	wrongKind := NewFrame()
	require.NoError(t, wrongKind.AddNumeric("lunch", []float64{1}))
	require.NoError(t, wrongKind.AddNumeric("reading_score", []float64{1}))
	assert.Error(t, p.Fit(wrongKind))
}

func TestPreprocessorConstantColumn(t *testing.T) {
	frame := NewFrame()
	require.NoError(t, frame.AddCategorical("lunch", []string{"standard", "standard"}))
	require.NoError(t, frame.AddNumeric("reading_score", []float64{50, 50}))

	p := NewPreprocessor(smallSchema, UnknownError)
	out, err := p.FitTransform(frame)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Numeric[0].Scale)
	assert.Equal(t, 0.0, out.At(0, 0))
}

func TestPreprocessorJSONRoundTrip(t *testing.T) {
	p := NewPreprocessor(smallSchema, UnknownIgnore)
	want, err := p.FitTransform(smallFrame(t))
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	var restored Preprocessor
	require.NoError(t, json.Unmarshal(data, &restored))

	got, err := restored.Transform(smallFrame(t))
	require.NoError(t, err)
	assert.Equal(t, want.RawMatrix().Data, got.RawMatrix().Data)
	assert.Equal(t, UnknownIgnore, restored.HandleUnknown)
}
