package ml

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TrainOptions configures a training run. Iterations, ErrorThresh and Log mirror
// the options recognised by the in-browser trainer.
type TrainOptions struct {
	Iterations   int
	ErrorThresh  float64
	Log          bool
	LogPeriod    int
	LearningRate float64
	Momentum     float64
	HiddenLayers []int
	Seed         int64
	MaxTreeDepth int

	// Progress is called every LogPeriod iterations when Log is set.
	Progress func(Progress)
}

// Progress is one training progress report.
type Progress struct {
	Iteration int     `json:"iteration"`
	Error     float64 `json:"error"`
}

// TrainStats summarises a finished training run.
type TrainStats struct {
	Iterations int
	Error      float64
}

// DefaultTrainOptions returns the settings the demonstrator trains with.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Iterations:   2000,
		ErrorThresh:  0.005,
		Log:          true,
		LogPeriod:    10,
		LearningRate: 0.3,
		Momentum:     0.1,
		Seed:         1,
		MaxTreeDepth: 10,
	}
}

var ErrNotTrained = errors.New("model not trained")

// Network is a fully connected feed-forward network with sigmoid activations.
type Network struct {
	inputKeys  []string
	outputKeys []string
	weights    []*mat.Dense
	biases     []*mat.VecDense
}

var _ Model = (*Network)(nil)

// TrainNetwork fits a network to samples with online back-propagation. It stops
// after opts.Iterations passes or once the mean squared error drops to
// opts.ErrorThresh, whichever comes first.
func TrainNetwork(ctx context.Context, samples []Sample, opts TrainOptions) (*Network, TrainStats, error) {
	if len(samples) == 0 {
		return nil, TrainStats{}, ErrEmptyDataset
	}
	if opts.Iterations <= 0 {
		opts.Iterations = 1
	}
	if opts.LogPeriod <= 0 {
		opts.LogPeriod = 10
	}

	n := &Network{
		inputKeys:  collectKeys(samples, func(s Sample) map[string]float64 { return s.Input }),
		outputKeys: collectKeys(samples, func(s Sample) map[string]float64 { return s.Output }),
	}
	if len(n.inputKeys) == 0 || len(n.outputKeys) == 0 {
		return nil, TrainStats{}, errors.New("samples carry no inputs or outputs")
	}
	hidden := opts.HiddenLayers
	if len(hidden) == 0 {
		size := len(n.inputKeys) / 2
		if size < 3 {
			size = 3
		}
		hidden = []int{size}
	}
	sizes := append(append([]int{len(n.inputKeys)}, hidden...), len(n.outputKeys))
	n.initialize(sizes, rand.New(rand.NewSource(opts.Seed)))

	inputs := make([]*mat.VecDense, len(samples))
	targets := make([]*mat.VecDense, len(samples))
	for i, s := range samples {
		inputs[i] = vectorOf(n.inputKeys, s.Input)
		targets[i] = vectorOf(n.outputKeys, s.Output)
	}

	changes := make([]*mat.Dense, len(n.weights))
	for l, w := range n.weights {
		r, c := w.Dims()
		changes[l] = mat.NewDense(r, c, nil)
	}

	stats := TrainStats{Error: 1}
	// the threshold is checked against a measured error, so at least one pass always runs
	for stats.Iterations < opts.Iterations {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		stats.Iterations++
		sum := 0.0
		for i := range inputs {
			sum += n.trainSample(inputs[i], targets[i], changes, opts.LearningRate, opts.Momentum)
		}
		stats.Error = sum / float64(len(inputs))
		if opts.Log && opts.Progress != nil && stats.Iterations%opts.LogPeriod == 0 {
			opts.Progress(Progress{Iteration: stats.Iterations, Error: stats.Error})
		}
		if stats.Error <= opts.ErrorThresh {
			break
		}
	}
	return n, stats, nil
}

func (n *Network) initialize(sizes []int, rng *rand.Rand) {
	for l := 1; l < len(sizes); l++ {
		w := mat.NewDense(sizes[l], sizes[l-1], nil)
		for i := 0; i < sizes[l]; i++ {
			for j := 0; j < sizes[l-1]; j++ {
				w.Set(i, j, rng.Float64()*0.4-0.2)
			}
		}
		b := mat.NewVecDense(sizes[l], nil)
		for i := 0; i < sizes[l]; i++ {
			b.SetVec(i, rng.Float64()*0.4-0.2)
		}
		n.weights = append(n.weights, w)
		n.biases = append(n.biases, b)
	}
}

// forward returns the activations of every layer, input included.
func (n *Network) forward(input *mat.VecDense) []*mat.VecDense {
	activations := []*mat.VecDense{input}
	current := input
	for l, w := range n.weights {
		rows, _ := w.Dims()
		next := mat.NewVecDense(rows, nil)
		next.MulVec(w, current)
		next.AddVec(next, n.biases[l])
		for i := 0; i < rows; i++ {
			next.SetVec(i, sigmoid(next.AtVec(i)))
		}
		activations = append(activations, next)
		current = next
	}
	return activations
}

// trainSample runs one forward/backward pass and returns the sample's mean squared error.
func (n *Network) trainSample(input, target *mat.VecDense, changes []*mat.Dense, rate, momentum float64) float64 {
	activations := n.forward(input)
	output := activations[len(activations)-1]

	size := output.Len()
	delta := mat.NewVecDense(size, nil)
	sum := 0.0
	for i := 0; i < size; i++ {
		o := output.AtVec(i)
		e := target.AtVec(i) - o
		sum += e * e
		delta.SetVec(i, e*o*(1-o))
	}

	for l := len(n.weights) - 1; l >= 0; l-- {
		prev := activations[l]
		var next *mat.VecDense
		if l > 0 {
			next = mat.NewVecDense(prev.Len(), nil)
			next.MulVec(n.weights[l].T(), delta)
			for i := 0; i < prev.Len(); i++ {
				a := prev.AtVec(i)
				next.SetVec(i, next.AtVec(i)*a*(1-a))
			}
		}

		var grad mat.Dense
		grad.Outer(rate, delta, prev)
		changes[l].Scale(momentum, changes[l])
		changes[l].Add(changes[l], &grad)
		n.weights[l].Add(n.weights[l], changes[l])
		n.biases[l].AddScaledVec(n.biases[l], rate, delta)

		delta = next
	}
	return sum / float64(size)
}

// Predict returns one value per output class. Missing inputs count as 0.
func (n *Network) Predict(input map[string]float64) RawOutput {
	if len(n.weights) == 0 {
		return nil
	}
	activations := n.forward(vectorOf(n.inputKeys, input))
	output := activations[len(activations)-1]
	result := make(NamedOutput, len(n.outputKeys))
	for i, key := range n.outputKeys {
		result[key] = output.AtVec(i)
	}
	return result
}

// InputKeys returns the input names in vector order.
func (n *Network) InputKeys() []string {
	return append([]string(nil), n.inputKeys...)
}

// OutputKeys returns the output class names in vector order.
func (n *Network) OutputKeys() []string {
	return append([]string(nil), n.outputKeys...)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func collectKeys(samples []Sample, field func(Sample) map[string]float64) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, s := range samples {
		for k := range field(s) {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func vectorOf(keys []string, values map[string]float64) *mat.VecDense {
	v := mat.NewVecDense(len(keys), nil)
	for i, k := range keys {
		v.SetVec(i, values[k])
	}
	return v
}
