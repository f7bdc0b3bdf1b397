package ml

import (
	"fmt"
	"math"
)

// ColumnKind distinguishes categorical from numeric columns.
type ColumnKind string

const (
	Categorical ColumnKind = "categorical"
	Numeric     ColumnKind = "numeric"
)

// Column holds one frame column. Categorical columns use Text, numeric
// columns use Num; missing numeric cells are NaN.
type Column struct {
	Name string
	Kind ColumnKind
	Text []string
	Num  []float64
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Num)
	}
	return len(c.Text)
}

// Frame is a small column-oriented table.
type Frame struct {
	columns []*Column
	index   map[string]int
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{index: make(map[string]int)}
}

// AddCategorical appends a text column. Its length must match the frame.
func (f *Frame) AddCategorical(name string, values []string) error {
	return f.add(&Column{Name: name, Kind: Categorical, Text: values})
}

// AddNumeric appends a float column. NaN marks a missing value.
func (f *Frame) AddNumeric(name string, values []float64) error {
	return f.add(&Column{Name: name, Kind: Numeric, Num: values})
}

func (f *Frame) add(col *Column) error {
	if _, ok := f.index[col.Name]; ok {
		return fmt.Errorf("duplicate column %q", col.Name)
	}
	if len(f.columns) > 0 && col.Len() != f.NumRows() {
		return fmt.Errorf("column %q has %d rows, frame has %d", col.Name, col.Len(), f.NumRows())
	}
	f.index[col.Name] = len(f.columns)
	f.columns = append(f.columns, col)
	return nil
}

// NumRows returns the row count, zero for a frame without columns.
func (f *Frame) NumRows() int {
	if len(f.columns) == 0 {
		return 0
	}
	return f.columns[0].Len()
}

// NumColumns returns the column count.
func (f *Frame) NumColumns() int {
	return len(f.columns)
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.columns))
	for i, col := range f.columns {
		names[i] = col.Name
	}
	return names
}

// Column looks up a column by name.
func (f *Frame) Column(name string) (*Column, bool) {
	idx, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[idx], true
}

// Select returns a frame with the given columns in the given order. Column
// data is shared with f.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := NewFrame()
	for _, name := range names {
		col, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		if err := out.add(col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Rows returns a frame holding the given row positions of f.
func (f *Frame) Rows(indices []int) *Frame {
	out := NewFrame()
	for _, col := range f.columns {
		sub := &Column{Name: col.Name, Kind: col.Kind}
		for _, i := range indices {
			if col.Kind == Numeric {
				sub.Num = append(sub.Num, col.Num[i])
			} else {
				sub.Text = append(sub.Text, col.Text[i])
			}
		}
		if sub.Kind == Numeric && sub.Num == nil {
			sub.Num = []float64{}
		}
		if sub.Kind == Categorical && sub.Text == nil {
			sub.Text = []string{}
		}
		out.index[sub.Name] = len(out.columns)
		out.columns = append(out.columns, sub)
	}
	return out
}

// Value returns the cell at row i of the named column formatted as a string.
func (f *Frame) Value(name string, i int) (string, bool) {
	col, ok := f.Column(name)
	if !ok || i < 0 || i >= col.Len() {
		return "", false
	}
	if col.Kind == Numeric {
		if math.IsNaN(col.Num[i]) {
			return "", true
		}
		return fmt.Sprintf("%g", col.Num[i]), true
	}
	return col.Text[i], true
}
