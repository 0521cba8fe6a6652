package ml

import (
	"context"
	"errors"
	"math"
	"sort"
)

const (
	classEdible    = 0
	classPoisonous = 1
)

// DecisionTree is a gini tree over the encoded feature vector. Leaves keep the
// class distribution of the rows that reached them.
type DecisionTree struct {
	columns []string
	nodes   []TreeNode
}

var _ Model = (*DecisionTree)(nil)

// TreeNode is a split or, when IsLeaf is set, a class distribution.
type TreeNode struct {
	FeatureIdx   int        `json:"feature_idx"`
	Threshold    float64    `json:"threshold"`
	LeftChild    int        `json:"left_child"`
	RightChild   int        `json:"right_child"`
	Distribution [2]float64 `json:"distribution"`
	IsLeaf       bool       `json:"is_leaf"`
}

// TrainDecisionTree grows a tree from samples, reading feature values in columns order.
func TrainDecisionTree(ctx context.Context, samples []Sample, columns []string, maxDepth int) (*DecisionTree, TrainStats, error) {
	if len(samples) == 0 {
		return nil, TrainStats{}, ErrEmptyDataset
	}
	if len(columns) == 0 {
		return nil, TrainStats{}, errors.New("no feature columns")
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}

	features := make([][]float64, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		features[i] = denseVector(columns, s.Input)
		if s.Output[LabelEdible] == 1 {
			labels[i] = classEdible
		} else {
			labels[i] = classPoisonous
		}
	}

	dt := &DecisionTree{columns: append([]string(nil), columns...)}
	nodes, err := dt.buildNode(ctx, features, labels, 0, maxDepth)
	if err != nil {
		return nil, TrainStats{}, err
	}
	dt.nodes = nodes

	wrong := 0
	for i, f := range features {
		p := dt.distribution(f)
		if (p[classPoisonous] > p[classEdible]) != (labels[i] == classPoisonous) {
			wrong++
		}
	}
	return dt, TrainStats{Iterations: 1, Error: float64(wrong) / float64(len(features))}, nil
}

// Predict returns the ordered pair [edible, poisonous].
func (dt *DecisionTree) Predict(input map[string]float64) RawOutput {
	if len(dt.nodes) == 0 {
		return nil
	}
	p := dt.distribution(denseVector(dt.columns, input))
	return PairOutput{p[classEdible], p[classPoisonous]}
}

func (dt *DecisionTree) distribution(features []float64) [2]float64 {
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Distribution
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

func (dt *DecisionTree) buildNode(ctx context.Context, features [][]float64, labels []int, depth, maxDepth int) ([]TreeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	leaf := []TreeNode{{
		FeatureIdx:   -1,
		LeftChild:    -1,
		RightChild:   -1,
		Distribution: classDistribution(labels),
		IsLeaf:       true,
	}}
	if depth >= maxDepth || isPure(labels) {
		return leaf, nil
	}

	bestFeature, threshold, ok := findBestSplit(features, labels)
	if !ok {
		return leaf, nil
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	leftNodes, err := dt.buildNode(ctx, leftFeatures, leftLabels, depth+1, maxDepth)
	if err != nil {
		return nil, err
	}
	rightNodes, err := dt.buildNode(ctx, rightFeatures, rightLabels, depth+1, maxDepth)
	if err != nil {
		return nil, err
	}

	// children indexes are relative to this subtree and shifted when it is embedded
	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, TreeNode{
		FeatureIdx:   bestFeature,
		Threshold:    threshold,
		LeftChild:    1,
		RightChild:   1 + len(leftNodes),
		Distribution: leaf[0].Distribution,
	})
	nodes = append(nodes, shift(leftNodes, 1)...)
	nodes = append(nodes, shift(rightNodes, 1+len(leftNodes))...)
	return nodes, nil
}

func shift(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if !nodes[i].IsLeaf {
			nodes[i].LeftChild += offset
			nodes[i].RightChild += offset
		}
	}
	return nodes
}

// findBestSplit tries every midpoint between adjacent distinct values of each feature.
func findBestSplit(features [][]float64, labels []int) (int, float64, bool) {
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	for featureIdx := range features[0] {
		values := distinctValues(features, featureIdx)
		for i := 1; i < len(values); i++ {
			threshold := (values[i-1] + values[i]) / 2
			leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
			impurity := weightedGini(leftLabels, rightLabels)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature != -1
}

func distinctValues(features [][]float64, featureIdx int) []float64 {
	seen := make(map[float64]struct{})
	var values []float64
	for _, f := range features {
		if _, ok := seen[f[featureIdx]]; !ok {
			seen[f[featureIdx]] = struct{}{}
			values = append(values, f[featureIdx])
		}
	}
	sort.Float64s(values)
	return values
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	var leftFeatures, rightFeatures [][]float64
	var leftLabels, rightLabels []int
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	var leftLabels, rightLabels []int
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	impurity := 1.0
	for _, prob := range classDistribution(labels) {
		impurity -= prob * prob
	}
	return impurity
}

func classDistribution(labels []int) [2]float64 {
	var dist [2]float64
	if len(labels) == 0 {
		return dist
	}
	for _, label := range labels {
		dist[label]++
	}
	dist[0] /= float64(len(labels))
	dist[1] /= float64(len(labels))
	return dist
}

func isPure(labels []int) bool {
	for _, label := range labels {
		if label != labels[0] {
			return false
		}
	}
	return true
}

func denseVector(columns []string, values map[string]float64) []float64 {
	v := make([]float64, len(columns))
	for i, c := range columns {
		v[i] = values[c]
	}
	return v
}
