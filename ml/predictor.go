package ml

import (
	"fmt"
	"math"
)

// MissingFeatureError reports a selection that lacks a feature column.
type MissingFeatureError struct {
	Column string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("selection has no value for column %s", e.Column)
}

// RawOutput is whatever a model returns from Predict: a NamedOutput, a PairOutput,
// or nil when the model has nothing to say.
type RawOutput interface {
	isRawOutput()
}

// NamedOutput carries one value per class name.
type NamedOutput map[string]float64

// PairOutput carries class values in the fixed order [edible, poisonous].
type PairOutput []float64

func (NamedOutput) isRawOutput() {}
func (PairOutput) isRawOutput()  {}

// Model is a trained classifier. Implementations are immutable after training.
type Model interface {
	Predict(input map[string]float64) RawOutput
}

// Prediction is the canonical two-class confidence pair. Values are passed through
// from the model and need not sum to 1.
type Prediction struct {
	Edible    float64 `json:"edible"`
	Poisonous float64 `json:"poisonous"`
}

// EncodeQuery maps a per-feature selection into the numeric space of tables.
// A code never seen during training is reported, never coerced to a number.
func EncodeQuery(selection map[string]string, tables *ValueTables) (map[string]float64, error) {
	vector := make(map[string]float64, len(tables.Columns)-1)
	for _, column := range tables.Features() {
		code, ok := selection[column]
		if !ok {
			return nil, &MissingFeatureError{Column: column}
		}
		table, ok := tables.Column(column)
		if !ok {
			return nil, &UnknownCategoryError{Column: column, Code: code}
		}
		value, ok := table.Lookup(code)
		if !ok {
			return nil, &UnknownCategoryError{Column: column, Code: code}
		}
		vector[column] = value
	}
	return vector, nil
}

// RunInference invokes model and normalises its output. ok is false when the
// output shape is not recognised.
func RunInference(model Model, vector map[string]float64) (Prediction, bool) {
	return Normalize(model.Predict(vector))
}

// Normalize converts a raw model output to the canonical pair.
func Normalize(raw RawOutput) (Prediction, bool) {
	switch out := raw.(type) {
	case NamedOutput:
		edible, okEdible := out[LabelEdible]
		poisonous, okPoisonous := out[LabelPoisonous]
		if !okEdible || !okPoisonous {
			return Prediction{}, false
		}
		return Prediction{Edible: edible, Poisonous: poisonous}, true
	case PairOutput:
		if len(out) != 2 {
			return Prediction{}, false
		}
		return Prediction{Edible: out[0], Poisonous: out[1]}, true
	default:
		return Prediction{}, false
	}
}

// PoisonousThreshold is the rounded poisonous percentage above which the verdict
// turns poisonous.
const PoisonousThreshold = 10

const (
	VerdictEdible    = "Likely edible!"
	VerdictPoisonous = "Likely poisonous!"
)

// Percent rounds a confidence to a whole percentage.
func Percent(v float64) int {
	return int(math.Round(v * 100))
}

// Verdict returns the binary textual verdict shown next to the confidences.
func (p Prediction) Verdict() string {
	if Percent(p.Poisonous) > PoisonousThreshold {
		return VerdictPoisonous
	}
	return VerdictEdible
}

// IsPoisonous reports whether the verdict is poisonous.
func (p Prediction) IsPoisonous() bool {
	return p.Verdict() == VerdictPoisonous
}
