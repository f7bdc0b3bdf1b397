package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"scorecast/ml"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dataset is a CSV file read into records keyed by normalized header names.
type Dataset struct {
	Header  []string
	Records []ml.Record
}

// LoadCSV reads a CSV file. encoding is any WHATWG label such as
// "windows-1252" or "gbk"; empty means UTF-8.
func LoadCSV(path, encoding string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds, err := ReadCSV(f, encoding)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV parses a CSV stream with a header row. encoding is a WHATWG label
// such as "windows-1252"; empty means UTF-8.
func ReadCSV(r io.Reader, encoding string) (*Dataset, error) {
	decoded, err := decoder(r, encoding)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(decoded)
	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("missing header row")
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = NormalizeColumn(name)
	}
	ds := &Dataset{Header: header, Records: make([]ml.Record, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		record := make(ml.Record, len(header))
		for i, name := range header {
			record[name] = strings.TrimSpace(row[i])
		}
		ds.Records = append(ds.Records, record)
	}
	return ds, nil
}

func decoder(r io.Reader, encoding string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(encoding))
	if name == "" || name == "utf-8" || name == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// NormalizeColumn maps header spellings such as "race/ethnicity" or
// "Math Score" onto column names like race_ethnicity and math_score.
func NormalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "/", "_", "-", "_").Replace(name)
}

// Len returns the number of data rows.
func (d *Dataset) Len() int { return len(d.Records) }

// HasColumn reports whether the normalized header contains name.
func (d *Dataset) HasColumn(name string) bool {
	for _, h := range d.Header {
		if h == name {
			return true
		}
	}
	return false
}

// Frame builds a frame over schema and the parsed target column. Blank
// numeric cells become NaN for the preprocessor to impute; the target must
// be present and finite on every row.
func (d *Dataset) Frame(schema ml.Schema, target string) (*ml.Frame, []float64, error) {
	for _, name := range append(schema.Columns(), target) {
		if !d.HasColumn(name) {
			return nil, nil, fmt.Errorf("dataset has no column %q", name)
		}
	}

	frame := ml.NewFrame()
	for _, name := range schema.Categorical {
		values := make([]string, len(d.Records))
		for i, r := range d.Records {
			values[i] = r[name]
		}
		if err := frame.AddCategorical(name, values); err != nil {
			return nil, nil, err
		}
	}
	for _, name := range schema.Numeric {
		values := make([]float64, len(d.Records))
		for i, r := range d.Records {
			v, err := parseCell(r[name])
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %q: %w", i+1, name, err)
			}
			values[i] = v
		}
		if err := frame.AddNumeric(name, values); err != nil {
			return nil, nil, err
		}
	}

	y := make([]float64, len(d.Records))
	for i, r := range d.Records {
		v, err := parseCell(r[target])
		if err == nil && math.IsNaN(v) {
			err = errors.New("missing target value")
		}
		if err != nil {
			return nil, nil, fmt.Errorf("row %d column %q: %w", i+1, target, err)
		}
		y[i] = v
	}
	return frame, y, nil
}

func parseCell(raw string) (float64, error) {
	if raw == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("value %q is not finite", raw)
	}
	return v, nil
}
