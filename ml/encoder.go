package ml

import (
	"errors"
	"fmt"
)

const (
	// LabelEdible and LabelPoisonous are the output class names.
	LabelEdible    = "edible"
	LabelPoisonous = "poisonous"

	// EdibleCode is the raw label code for edible rows; any other code is poisonous.
	EdibleCode = "e"
)

var (
	ErrEmptyDataset = errors.New("dataset contains no usable rows")
	ErrRowLength    = errors.New("row length does not match column count")
)

// UnknownCategoryError reports a category code absent from a column's value table.
type UnknownCategoryError struct {
	Column string
	Code   string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q for column %s", e.Code, e.Column)
}

// ValueTable maps each category code of one column to its position in [0,1].
type ValueTable struct {
	// Codes holds the distinct codes in first-occurrence order.
	Codes  []string
	Values map[string]float64
}

// Lookup returns the scalar for code.
func (t *ValueTable) Lookup(code string) (float64, bool) {
	v, ok := t.Values[code]
	return v, ok
}

// CodeFor returns the code encoded as value.
func (t *ValueTable) CodeFor(value float64) (string, bool) {
	for _, code := range t.Codes {
		if t.Values[code] == value {
			return code, true
		}
	}
	return "", false
}

// Len returns the number of distinct codes.
func (t *ValueTable) Len() int {
	return len(t.Codes)
}

// ValueTables holds the value table of every feature column together with the
// column order it was built from. Training and query encoding must share it.
type ValueTables struct {
	Columns []string
	Tables  map[string]*ValueTable
}

// Features returns the feature column names (every column except the label).
func (v *ValueTables) Features() []string {
	if len(v.Columns) == 0 {
		return nil
	}
	return v.Columns[1:]
}

// Column returns the table for a feature column.
func (v *ValueTables) Column(name string) (*ValueTable, bool) {
	t, ok := v.Tables[name]
	return t, ok
}

// Sample is an encoded training example. Output carries exactly one class key.
type Sample struct {
	Input  map[string]float64 `json:"input"`
	Output map[string]float64 `json:"output"`
}

// BuildValueTables assigns every distinct code of each feature column the scalar
// index/max(distinct-1, 1), indexes following first occurrence. A column with a
// single code therefore maps it to 0. An empty row set is rejected.
func BuildValueTables(rows [][]string, columns []string) (*ValueTables, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d: %w", i, ErrRowLength)
		}
	}

	tables := &ValueTables{
		Columns: append([]string(nil), columns...),
		Tables:  make(map[string]*ValueTable, len(columns)-1),
	}
	for col := 1; col < len(columns); col++ {
		seen := make(map[string]struct{})
		var codes []string
		for _, row := range rows {
			if _, ok := seen[row[col]]; !ok {
				seen[row[col]] = struct{}{}
				codes = append(codes, row[col])
			}
		}

		denominator := float64(len(codes) - 1)
		if denominator < 1 {
			denominator = 1
		}
		table := &ValueTable{Codes: codes, Values: make(map[string]float64, len(codes))}
		for i, code := range codes {
			table.Values[code] = float64(i) / denominator
		}
		tables.Tables[columns[col]] = table
	}
	return tables, nil
}

// EncodeSamples turns raw rows into training samples using tables. A code missing
// from its column's table is a data-consistency violation and fails the encoding.
func EncodeSamples(rows [][]string, tables *ValueTables) ([]Sample, error) {
	columns := tables.Columns
	samples := make([]Sample, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d: %w", i, ErrRowLength)
		}
		input := make(map[string]float64, len(columns)-1)
		for col := 1; col < len(columns); col++ {
			name := columns[col]
			table, ok := tables.Tables[name]
			if !ok {
				return nil, fmt.Errorf("row %d: %w", i, &UnknownCategoryError{Column: name, Code: row[col]})
			}
			value, ok := table.Lookup(row[col])
			if !ok {
				return nil, fmt.Errorf("row %d: %w", i, &UnknownCategoryError{Column: name, Code: row[col]})
			}
			input[name] = value
		}
		samples = append(samples, Sample{Input: input, Output: LabelOutput(row[0])})
	}
	return samples, nil
}

// LabelOutput returns the single-key target for a raw label code. Unknown
// edibility is folded into poisonous.
func LabelOutput(code string) map[string]float64 {
	if code == EdibleCode {
		return map[string]float64{LabelEdible: 1}
	}
	return map[string]float64{LabelPoisonous: 1}
}
