package ml

import (
	"errors"
	"math"
	"math/rand"
)

// Metrics summarises predictions against labelled samples, with poisonous as the
// positive class.
type Metrics struct {
	Samples      int
	Unrecognized int
	Accuracy     float64
	Precision    float64
	Recall       float64
}

// Evaluate runs model over samples and compares the verdict with each label.
func Evaluate(model Model, samples []Sample) Metrics {
	m := Metrics{Samples: len(samples)}
	if len(samples) == 0 {
		return m
	}

	var correct, truePositive, predictedPositive, actualPositive int
	for _, s := range samples {
		prediction, ok := RunInference(model, s.Input)
		if !ok {
			m.Unrecognized++
			continue
		}
		predicted := prediction.IsPoisonous()
		actual := s.Output[LabelPoisonous] == 1
		if predicted == actual {
			correct++
		}
		if predicted {
			predictedPositive++
		}
		if actual {
			actualPositive++
			if predicted {
				truePositive++
			}
		}
	}

	m.Accuracy = float64(correct) / float64(len(samples))
	if predictedPositive > 0 {
		m.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		m.Recall = float64(truePositive) / float64(actualPositive)
	}
	return m
}

// SplitRows shuffles rows with seed and splits them into train and test parts.
// A ratio outside (0,1) falls back to 0.2.
func SplitRows(rows [][]string, testRatio float64, seed int64) (train, test [][]string) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(rows))

	split := int(math.Round(float64(len(rows)) * (1 - testRatio)))
	for i, idx := range indices {
		if i < split {
			train = append(train, rows[idx])
		} else {
			test = append(test, rows[idx])
		}
	}
	return train, test
}

// EncodeKnown encodes rows like EncodeSamples but skips rows carrying a code absent
// from tables, returning how many were skipped.
func EncodeKnown(rows [][]string, tables *ValueTables) ([]Sample, int, error) {
	samples := make([]Sample, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		encoded, err := EncodeSamples([][]string{row}, tables)
		var unknown *UnknownCategoryError
		if errors.As(err, &unknown) {
			skipped++
			continue
		}
		if err != nil {
			return nil, skipped, err
		}
		samples = append(samples, encoded...)
	}
	return samples, skipped, nil
}
