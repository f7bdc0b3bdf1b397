package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// UnknownPolicy controls how categories unseen during Fit are encoded.
type UnknownPolicy string

const (
	// UnknownError rejects unseen categories.
	UnknownError UnknownPolicy = "error"
	// UnknownIgnore encodes unseen categories as all zeros.
	UnknownIgnore UnknownPolicy = "ignore"
)

// ErrUnknownCategory is returned by Transform under UnknownError.
var ErrUnknownCategory = errors.New("unknown category")

// NumericScaling is the fitted state of one numeric column.
type NumericScaling struct {
	Name   string  `json:"name"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// CategoricalEncoding is the fitted state of one categorical column.
// Categories are sorted and define the one-hot column order.
type CategoricalEncoding struct {
	Name         string   `json:"name"`
	Categories   []string `json:"categories"`
	MostFrequent string   `json:"most_frequent"`
}

// Preprocessor median-imputes and standard-scales numeric columns and
// one-hot encodes categorical columns. Output columns are the numeric
// features in schema order followed by each categorical column's sorted
// categories.
type Preprocessor struct {
	Schema        Schema                `json:"schema"`
	HandleUnknown UnknownPolicy         `json:"handle_unknown"`
	Numeric       []NumericScaling      `json:"numeric"`
	Categorical   []CategoricalEncoding `json:"categorical"`
}

// NewPreprocessor returns an unfitted preprocessor. An empty policy means
// UnknownError.
func NewPreprocessor(schema Schema, policy UnknownPolicy) *Preprocessor {
	if policy == "" {
		policy = UnknownError
	}
	return &Preprocessor{Schema: schema, HandleUnknown: policy}
}

// Fitted reports whether Fit has run.
func (p *Preprocessor) Fitted() bool {
	return len(p.Numeric) == len(p.Schema.Numeric) &&
		len(p.Categorical) == len(p.Schema.Categorical) &&
		len(p.Numeric)+len(p.Categorical) > 0
}

// Fit learns imputation values, scaling and category sets from frame.
func (p *Preprocessor) Fit(frame *Frame) error {
	if frame.NumRows() == 0 {
		return errors.New("frame is empty")
	}

	numeric := make([]NumericScaling, 0, len(p.Schema.Numeric))
	for _, name := range p.Schema.Numeric {
		col, err := columnOfKind(frame, name, Numeric)
		if err != nil {
			return err
		}
		scaling, err := fitNumeric(col)
		if err != nil {
			return err
		}
		numeric = append(numeric, scaling)
	}

	categorical := make([]CategoricalEncoding, 0, len(p.Schema.Categorical))
	for _, name := range p.Schema.Categorical {
		col, err := columnOfKind(frame, name, Categorical)
		if err != nil {
			return err
		}
		encoding, err := fitCategorical(col)
		if err != nil {
			return err
		}
		categorical = append(categorical, encoding)
	}

	p.Numeric = numeric
	p.Categorical = categorical
	return nil
}

// Transform imputes, scales and one-hot encodes frame into a matrix with
// NumFeatures columns.
func (p *Preprocessor) Transform(frame *Frame) (*mat.Dense, error) {
	if !p.Fitted() {
		return nil, errors.New("preprocessor is not fitted")
	}
	rows := frame.NumRows()
	if rows == 0 {
		return nil, errors.New("frame is empty")
	}

	out := mat.NewDense(rows, p.NumFeatures(), nil)
	offset := 0
	for _, scaling := range p.Numeric {
		col, err := columnOfKind(frame, scaling.Name, Numeric)
		if err != nil {
			return nil, err
		}
		for i, v := range col.Num {
			if math.IsNaN(v) {
				v = scaling.Median
			}
			out.Set(i, offset, (v-scaling.Mean)/scaling.Scale)
		}
		offset++
	}

	for _, encoding := range p.Categorical {
		col, err := columnOfKind(frame, encoding.Name, Categorical)
		if err != nil {
			return nil, err
		}
		for i, v := range col.Text {
			if v == "" {
				v = encoding.MostFrequent
			}
			pos := sort.SearchStrings(encoding.Categories, v)
			if pos < len(encoding.Categories) && encoding.Categories[pos] == v {
				out.Set(i, offset+pos, 1)
				continue
			}
			if p.HandleUnknown != UnknownIgnore {
				return nil, fmt.Errorf("column %q: %w %q", encoding.Name, ErrUnknownCategory, v)
			}
		}
		offset += len(encoding.Categories)
	}
	return out, nil
}

// FitTransform is Fit followed by Transform.
func (p *Preprocessor) FitTransform(frame *Frame) (*mat.Dense, error) {
	if err := p.Fit(frame); err != nil {
		return nil, err
	}
	return p.Transform(frame)
}

// NumFeatures is the output width: numeric columns plus all categories.
func (p *Preprocessor) NumFeatures() int {
	n := len(p.Numeric)
	for _, encoding := range p.Categorical {
		n += len(encoding.Categories)
	}
	return n
}

// FeatureNames names the transformed columns, e.g. "reading_score" or
// "lunch=standard".
func (p *Preprocessor) FeatureNames() []string {
	names := make([]string, 0, p.NumFeatures())
	for _, scaling := range p.Numeric {
		names = append(names, scaling.Name)
	}
	for _, encoding := range p.Categorical {
		for _, category := range encoding.Categories {
			names = append(names, encoding.Name+"="+category)
		}
	}
	return names
}

func columnOfKind(frame *Frame, name string, kind ColumnKind) (*Column, error) {
	col, ok := frame.Column(name)
	if !ok {
		return nil, fmt.Errorf("missing column %q", name)
	}
	if col.Kind != kind {
		return nil, fmt.Errorf("column %q is %s, want %s", name, col.Kind, kind)
	}
	return col, nil
}

func fitNumeric(col *Column) (NumericScaling, error) {
	present := make([]float64, 0, len(col.Num))
	for _, v := range col.Num {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return NumericScaling{}, fmt.Errorf("column %q has no values", col.Name)
	}
	median := medianOf(present)

	imputed := make([]float64, len(col.Num))
	for i, v := range col.Num {
		if math.IsNaN(v) {
			v = median
		}
		imputed[i] = v
	}

	mean, variance := stat.MeanVariance(imputed, nil)
	n := float64(len(imputed))
	if n < 2 || math.IsNaN(variance) {
		variance = 0
	} else {
		variance = variance * (n - 1) / n
	}
	scale := math.Sqrt(variance)
	if scale == 0 {
		scale = 1
	}
	return NumericScaling{Name: col.Name, Median: median, Mean: mean, Scale: scale}, nil
}

// medianOf sorts values in place. An even count averages the two middle
// values.
func medianOf(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

func fitCategorical(col *Column) (CategoricalEncoding, error) {
	counts := make(map[string]int)
	for _, v := range col.Text {
		if v != "" {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return CategoricalEncoding{}, fmt.Errorf("column %q has no values", col.Name)
	}

	categories := make([]string, 0, len(counts))
	for v := range counts {
		categories = append(categories, v)
	}
	sort.Strings(categories)

	mostFrequent := categories[0]
	for _, v := range categories[1:] {
		if counts[v] > counts[mostFrequent] {
			mostFrequent = v
		}
	}
	return CategoricalEncoding{Name: col.Name, Categories: categories, MostFrequent: mostFrequent}, nil
}
