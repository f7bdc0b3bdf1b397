package ml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() Record {
	return Record{
		ColumnGender:                   "female",
		ColumnRaceEthnicity:            "group B",
		ColumnParentalLevelOfEducation: "bachelor's degree",
		ColumnLunch:                    "standard",
		ColumnTestPreparationCourse:    "none",
		ColumnReadingScore:             "72",
		ColumnWritingScore:             "74.5",
	}
}

func TestToFrameColumnOrder(t *testing.T) {
	frame, err := ToFrame(validRecord())
	require.NoError(t, err)

	assert.Equal(t, 1, frame.NumRows())
	assert.Equal(t, []string{
		"gender",
		"race_ethnicity",
		"parental_level_of_education",
		"lunch",
		"test_preparation_course",
		"reading_score",
		"writing_score",
	}, frame.Columns())

	v, ok := frame.Value(ColumnReadingScore, 0)
	require.True(t, ok)
	assert.Equal(t, "72", v)
	v, ok = frame.Value(ColumnRaceEthnicity, 0)
	require.True(t, ok)
	assert.Equal(t, "group B", v)
}

func TestToFrameRejectsNonNumericScore(t *testing.T) {
	record := validRecord()
	record[ColumnReadingScore] = "abc"

	_, err := ToFrame(record)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ColumnReadingScore, verr.Field)
	assert.Equal(t, "abc", verr.Value)
	assert.Equal(t, CodeValidation, verr.Code())
}

func TestToFrameRejectsMissingField(t *testing.T) {
	record := validRecord()
	delete(record, ColumnWritingScore)

	_, err := ToFrame(record)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ColumnWritingScore, verr.Field)
	assert.True(t, errors.Is(err, errMissingField))
}

func TestToFrameTreatsBlankAsMissing(t *testing.T) {
	record := validRecord()
	record[ColumnLunch] = "   "

	_, err := ToFrame(record)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ColumnLunch, verr.Field)
}

func TestToFrameRejectsNonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "-inf"} {
		record := validRecord()
		record[ColumnWritingScore] = raw

		_, err := ToFrame(record)
		assert.ErrorIs(t, err, errNotFinite, raw)
	}
}

func TestToFrameAcceptsAnyCategory(t *testing.T) {
	record := validRecord()
	record[ColumnRaceEthnicity] = "group Z"

	frame, err := ToFrame(record)
	require.NoError(t, err)
	v, _ := frame.Value(ColumnRaceEthnicity, 0)
	assert.Equal(t, "group Z", v)
}

func TestSchemaWithout(t *testing.T) {
	schema := DefaultSchema().Without(ColumnWritingScore)
	assert.Equal(t, []string{
		ColumnGender,
		ColumnRaceEthnicity,
		ColumnParentalLevelOfEducation,
		ColumnLunch,
		ColumnTestPreparationCourse,
		ColumnReadingScore,
	}, schema.Columns())

	record := validRecord()
	delete(record, ColumnWritingScore)
	frame, err := schema.ToFrame(record)
	require.NoError(t, err)
	assert.Equal(t, 6, frame.NumColumns())
}

func TestFrameOperations(t *testing.T) {
	frame := NewFrame()
	require.NoError(t, frame.AddCategorical("lunch", []string{"standard", "free/reduced", "standard"}))
	require.NoError(t, frame.AddNumeric("reading_score", []float64{70, 55, 81}))

	assert.Error(t, frame.AddNumeric("reading_score", []float64{1, 2, 3}), "duplicate column")
	assert.Error(t, frame.AddNumeric("writing_score", []float64{1}), "row count mismatch")

	sub := frame.Rows([]int{2, 0})
	assert.Equal(t, 2, sub.NumRows())
	v, _ := sub.Value("reading_score", 0)
	assert.Equal(t, "81", v)

	selected, err := frame.Select("reading_score")
	require.NoError(t, err)
	assert.Equal(t, []string{"reading_score"}, selected.Columns())

	_, err = frame.Select("math_score")
	assert.Error(t, err)
}
