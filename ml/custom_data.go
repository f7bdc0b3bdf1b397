package ml

import (
	"math"
	"strconv"
	"strings"
)

const (
	ColumnGender                   = "gender"
	ColumnRaceEthnicity            = "race_ethnicity"
	ColumnParentalLevelOfEducation = "parental_level_of_education"
	ColumnLunch                    = "lunch"
	ColumnTestPreparationCourse    = "test_preparation_course"
	ColumnReadingScore             = "reading_score"
	ColumnWritingScore             = "writing_score"
	ColumnMathScore                = "math_score"
)

// Record is one set of raw feature values keyed by column name. A missing
// key means the field was not supplied.
type Record map[string]string

// Schema lists the feature columns a preprocessor and model are fit on.
// Frames always carry the categorical columns first, then the numeric ones.
type Schema struct {
	Categorical []string `json:"categorical" yaml:"categorical"`
	Numeric     []string `json:"numeric" yaml:"numeric"`
}

// DefaultSchema is the seven-field student record.
func DefaultSchema() Schema {
	return Schema{
		Categorical: []string{
			ColumnGender,
			ColumnRaceEthnicity,
			ColumnParentalLevelOfEducation,
			ColumnLunch,
			ColumnTestPreparationCourse,
		},
		Numeric: []string{
			ColumnReadingScore,
			ColumnWritingScore,
		},
	}
}

// Columns lists categorical then numeric column names.
func (s Schema) Columns() []string {
	cols := make([]string, 0, len(s.Categorical)+len(s.Numeric))
	cols = append(cols, s.Categorical...)
	return append(cols, s.Numeric...)
}

// Without returns a copy of s with the named column removed, typically the
// training target.
func (s Schema) Without(name string) Schema {
	out := Schema{}
	for _, c := range s.Categorical {
		if c != name {
			out.Categorical = append(out.Categorical, c)
		}
	}
	for _, c := range s.Numeric {
		if c != name {
			out.Numeric = append(out.Numeric, c)
		}
	}
	return out
}

// ToFrame builds the one-row frame for a record using DefaultSchema.
func ToFrame(record Record) (*Frame, error) {
	return DefaultSchema().ToFrame(record)
}

// ToFrame builds a one-row frame holding every schema column in order.
// Categorical values are passed through as given.
func (s Schema) ToFrame(record Record) (*Frame, error) {
	frame := NewFrame()
	for _, name := range s.Categorical {
		value, err := requireField(record, name)
		if err != nil {
			return nil, err
		}
		if err := frame.AddCategorical(name, []string{value}); err != nil {
			return nil, &ValidationError{Field: name, Err: err}
		}
	}
	for _, name := range s.Numeric {
		raw, err := requireField(record, name)
		if err != nil {
			return nil, err
		}
		value, err := parseScore(name, raw)
		if err != nil {
			return nil, err
		}
		if err := frame.AddNumeric(name, []float64{value}); err != nil {
			return nil, &ValidationError{Field: name, Err: err}
		}
	}
	return frame, nil
}

func requireField(record Record, name string) (string, error) {
	value, ok := record[name]
	if !ok || strings.TrimSpace(value) == "" {
		return "", &ValidationError{Field: name, Err: errMissingField}
	}
	return value, nil
}

func parseScore(name, raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &ValidationError{Field: name, Value: raw, Err: err}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &ValidationError{Field: name, Value: raw, Err: errNotFinite}
	}
	return value, nil
}
