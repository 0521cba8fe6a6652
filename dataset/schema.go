// Package dataset describes the mushroom attribute table and reads it from CSV.
package dataset

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultSource is the UCI Machine Learning Repository copy of the dataset.
const DefaultSource = "https://archive.ics.uci.edu/ml/machine-learning-databases/mushroom/agaricus-lepiota.data"

// LabelColumn is the name of column 0; every other column is a categorical feature.
const LabelColumn = "class"

// Columns is the declared column order of agaricus-lepiota.data.
var Columns = []string{
	LabelColumn,
	"cap-shape",
	"cap-surface",
	"cap-color",
	"bruises",
	"odor",
	"gill-attachment",
	"gill-spacing",
	"gill-size",
	"gill-color",
	"stalk-shape",
	"stalk-root",
	"stalk-surface-above-ring",
	"stalk-surface-below-ring",
	"stalk-color-above-ring",
	"stalk-color-below-ring",
	"veil-type",
	"veil-color",
	"ring-number",
	"ring-type",
	"spore-print-color",
	"population",
	"habitat",
}

// FeatureColumns returns the feature column names in declared order.
func FeatureColumns() []string {
	return append([]string(nil), Columns[1:]...)
}

var titleCaser = cases.Title(language.English)

// Title turns a column name such as "stalk-surface-above-ring" into a heading.
func Title(column string) string {
	return titleCaser.String(strings.ReplaceAll(column, "-", " "))
}

// Selection maps a feature column to the chosen category code.
type Selection map[string]string

// Clone returns an independent copy.
func (s Selection) Clone() Selection {
	c := make(Selection, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Key returns a canonical representation, stable regardless of map order.
func (s Selection) Key() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s[k])
	}
	return b.String()
}

// DefaultSelection is the selection shown before the user changes anything.
// Every code in it occurs in the published dataset.
func DefaultSelection() Selection {
	return Selection{
		"cap-shape":                "x",
		"cap-surface":              "s",
		"cap-color":                "n",
		"bruises":                  "t",
		"odor":                     "n",
		"gill-attachment":          "f",
		"gill-spacing":             "c",
		"gill-size":                "b",
		"gill-color":               "k",
		"stalk-shape":              "e",
		"stalk-root":               "e",
		"stalk-surface-above-ring": "s",
		"stalk-surface-below-ring": "s",
		"stalk-color-above-ring":   "w",
		"stalk-color-below-ring":   "w",
		"veil-type":                "p",
		"veil-color":               "w",
		"ring-number":              "o",
		"ring-type":                "p",
		"spore-print-color":        "k",
		"population":               "s",
		"habitat":                  "u",
	}
}
