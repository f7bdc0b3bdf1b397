package ml

import (
	"math/rand"
	"strconv"
)

var (
	testGenders    = []string{"female", "male"}
	testGroups     = []string{"group A", "group B", "group C", "group D", "group E"}
	testEducations = []string{"some high school", "high school", "some college", "associate's degree", "bachelor's degree", "master's degree"}
	testLunches    = []string{"standard", "free/reduced"}
	testPrep       = []string{"none", "completed"}
)

// studentRecords generates n records whose scores depend on the categorical
// fields plus a little noise.
func studentRecords(n int, seed int64) []Record {
	rng := rand.New(rand.NewSource(seed))
	records := make([]Record, n)
	for i := range records {
		gender := rng.Intn(len(testGenders))
		group := rng.Intn(len(testGroups))
		education := rng.Intn(len(testEducations))
		lunch := rng.Intn(len(testLunches))
		prep := rng.Intn(len(testPrep))

		base := 50 + 2*float64(education) + 3*float64(group) - 8*float64(lunch) + 6*float64(prep)
		reading := base + 4*float64(1-gender) + rng.NormFloat64()*3
		writing := reading + 2*float64(1-gender) + rng.NormFloat64()*2
		math := base + 5*float64(gender) + rng.NormFloat64()*3

		records[i] = Record{
			ColumnGender:                   testGenders[gender],
			ColumnRaceEthnicity:            testGroups[group],
			ColumnParentalLevelOfEducation: testEducations[education],
			ColumnLunch:                    testLunches[lunch],
			ColumnTestPreparationCourse:    testPrep[prep],
			ColumnReadingScore:             strconv.FormatFloat(reading, 'f', 1, 64),
			ColumnWritingScore:             strconv.FormatFloat(writing, 'f', 1, 64),
			ColumnMathScore:                strconv.FormatFloat(math, 'f', 1, 64),
		}
	}
	return records
}

// recordsFrame stacks records into a frame over schema and returns the
// parsed target column alongside it.
func recordsFrame(schema Schema, records []Record, target string) (*Frame, []float64) {
	frame := NewFrame()
	for _, name := range schema.Categorical {
		values := make([]string, len(records))
		for i, r := range records {
			values[i] = r[name]
		}
		if err := frame.AddCategorical(name, values); err != nil {
			panic(err)
		}
	}
	for _, name := range schema.Numeric {
		values := make([]float64, len(records))
		for i, r := range records {
			values[i], _ = strconv.ParseFloat(r[name], 64)
		}
		if err := frame.AddNumeric(name, values); err != nil {
			panic(err)
		}
	}
	y := make([]float64, len(records))
	for i, r := range records {
		y[i], _ = strconv.ParseFloat(r[target], 64)
	}
	return frame, y
}
