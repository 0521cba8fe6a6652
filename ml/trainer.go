package ml

import (
	"context"
	"fmt"
)

const (
	ModelNeuralNetwork = "neural_network"
	ModelDecisionTree  = "decision_tree"
)

// Trainer produces a Model from encoded samples.
type Trainer interface {
	Name() string
	Train(ctx context.Context, samples []Sample, tables *ValueTables, opts TrainOptions) (Model, TrainStats, error)
}

// NewTrainer returns the trainer registered under modelType.
func NewTrainer(modelType string) (Trainer, error) {
	switch modelType {
	case ModelNeuralNetwork, "":
		return networkTrainer{}, nil
	case ModelDecisionTree:
		return treeTrainer{}, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}

type networkTrainer struct{}

func (networkTrainer) Name() string { return ModelNeuralNetwork }

func (networkTrainer) Train(ctx context.Context, samples []Sample, _ *ValueTables, opts TrainOptions) (Model, TrainStats, error) {
	n, stats, err := TrainNetwork(ctx, samples, opts)
	if err != nil {
		return nil, stats, err
	}
	return n, stats, nil
}

type treeTrainer struct{}

func (treeTrainer) Name() string { return ModelDecisionTree }

func (treeTrainer) Train(ctx context.Context, samples []Sample, tables *ValueTables, opts TrainOptions) (Model, TrainStats, error) {
	dt, stats, err := TrainDecisionTree(ctx, samples, tables.Features(), opts.MaxTreeDepth)
	if err != nil {
		return nil, stats, err
	}
	return dt, stats, nil
}
