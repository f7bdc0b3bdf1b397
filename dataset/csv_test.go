package dataset

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"scorecast/ml"
)

const studentsCSV = `gender,race/ethnicity,parental level of education,lunch,test preparation course,math score,reading score,writing score
female,group B,bachelor's degree,standard,none,72,72,74
female,group C,some college,standard,completed,69,90,88
male,group A,associate's degree,free/reduced,none,47,57,44
male,group C,some college,standard,none,76,,75
`

func TestReadCSVNormalizesHeader(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(studentsCSV), "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"gender", "race_ethnicity", "parental_level_of_education", "lunch",
		"test_preparation_course", "math_score", "reading_score", "writing_score",
	}, ds.Header)
	require.Equal(t, 4, ds.Len())
	assert.Equal(t, "group B", ds.Records[0][ml.ColumnRaceEthnicity])
	assert.Equal(t, "bachelor's degree", ds.Records[0][ml.ColumnParentalLevelOfEducation])
}

func TestDatasetFrame(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(studentsCSV), "")
	require.NoError(t, err)

	frame, y, err := ds.Frame(ml.DefaultSchema(), ml.ColumnMathScore)
	require.NoError(t, err)
	assert.Equal(t, ml.DefaultSchema().Columns(), frame.Columns())
	assert.Equal(t, []float64{72, 69, 47, 76}, y)

	col, ok := frame.Column(ml.ColumnReadingScore)
	require.True(t, ok)
	assert.True(t, math.IsNaN(col.Num[3]))

	_, _, err = ds.Frame(ml.DefaultSchema(), "science_score")
	assert.Error(t, err)
}

func TestDatasetFrameBadCell(t *testing.T) {
	data := strings.Replace(studentsCSV, "69,90,88", "69,ninety,88", 1)
	ds, err := ReadCSV(strings.NewReader(data), "")
	require.NoError(t, err)

	_, _, err = ds.Frame(ml.DefaultSchema(), ml.ColumnMathScore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")

	// reading_score is blank on row 4, which is fatal as a target.
	_, _, err = ds.Frame(ml.DefaultSchema().Without(ml.ColumnReadingScore), ml.ColumnReadingScore)
	assert.Error(t, err)
}

func TestReadCSVDecodesLegacyEncoding(t *testing.T) {
	text := "gender,lunch\nfemale,café\n"
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)

	ds, err := ReadCSV(bytes.NewReader(encoded), "windows-1252")
	require.NoError(t, err)
	assert.Equal(t, "café", ds.Records[0]["lunch"])

	_, err = ReadCSV(bytes.NewReader(encoded), "klingon")
	assert.Error(t, err)
}

func TestReadCSVStripsBOM(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("\ufeffgender,lunch\nmale,standard\n"), "utf-8")
	require.NoError(t, err)
	assert.Equal(t, "gender", ds.Header[0])
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stud.csv")
	require.NoError(t, os.WriteFile(path, []byte(studentsCSV), 0o644))

	ds, err := LoadCSV(path, "")
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len())

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), "")
	assert.Error(t, err)
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)

	all := append(append([]int{}, train...), test...)
	sort.Ints(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)

	train2, test2, err := TrainTestSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test, err = TrainTestSplit(3, 0.01, 1)
	require.NoError(t, err)
	assert.Len(t, test, 1)

	_, _, err = TrainTestSplit(10, 1.5, 1)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(1, 0.2, 1)
	assert.Error(t, err)
}
