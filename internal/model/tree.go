package model

import (
	"math/rand"
	"sort"
)

// treeNode is one node of a fitted regression tree. Nodes are stored in a
// flat slice so the tree serializes to JSON without recursion.
type treeNode struct {
	Feature   int     `json:"f"` // -1 marks a leaf
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"` // leaf prediction (mean of samples)
}

// regressionTree is a fitted CART regression tree.
type regressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

// predict walks the tree for one feature row.
func (t *regressionTree) predict(row []float64) float64 {
	i := 0
	for {
		node := &t.Nodes[i]
		if node.Feature < 0 {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

// treeParams bounds tree growth.
type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
}

// treeBuilder grows one tree over a bootstrap sample and accumulates
// per-feature impurity decreases for the importance diagnostic.
type treeBuilder struct {
	x          [][]float64
	y          []float64
	params     treeParams
	nodes      []treeNode
	importance []float64
	totalRows  int
}

// growTree fits a regression tree on the rows selected by idx.
// 분할 탐색은 전 피처를 훑으므로 트리 자체는 결정적이고, 무작위성은
// 부트스트랩 샘플에서만 온다.
func growTree(x [][]float64, y []float64, idx []int, params treeParams, importance []float64) *regressionTree {
	b := &treeBuilder{
		x:          x,
		y:          y,
		params:     params,
		importance: importance,
		totalRows:  len(idx),
	}
	b.build(idx, 0)
	return &regressionTree{Nodes: b.nodes}
}

// build grows the subtree for idx, returning its node index.
func (b *treeBuilder) build(idx []int, depth int) int {
	sum, sqSum := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sqSum += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sqSum - sum*sum/n

	nodeID := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Feature: -1, Value: mean})

	if depth >= b.params.maxDepth || len(idx) < b.params.minSamplesSplit || sse <= 0 {
		return nodeID
	}

	feature, threshold, gain, ok := b.bestSplit(idx, sse)
	if !ok {
		return nodeID
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	if b.importance != nil {
		// 노드 샘플 비중으로 가중한 불순도 감소량
		b.importance[feature] += gain * n / float64(b.totalRows)
	}

	b.nodes[nodeID].Feature = feature
	b.nodes[nodeID].Threshold = threshold
	b.nodes[nodeID].Left = b.build(left, depth+1)
	b.nodes[nodeID].Right = b.build(right, depth+1)
	return nodeID
}

// bestSplit finds the split minimizing the children's summed squared error.
// Prefix sums over each feature's sorted order keep this O(d·n log n).
func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (feature int, threshold, gain float64, ok bool) {
	bestGain := 1e-12
	numFeatures := len(b.x[idx[0]])
	order := make([]int, len(idx))

	for f := 0; f < numFeatures; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool {
			return b.x[order[a]][f] < b.x[order[c]][f]
		})

		leftSum, leftSq := 0.0, 0.0
		totalSum, totalSq := 0.0, 0.0
		for _, i := range order {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		n := len(order)
		for pos := 0; pos < n-1; pos++ {
			i := order[pos]
			leftSum += b.y[i]
			leftSq += b.y[i] * b.y[i]

			// 같은 값 사이는 분할 불가
			cur, next := b.x[i][f], b.x[order[pos+1]][f]
			if cur == next {
				continue
			}

			nl := pos + 1
			nr := n - nl
			if nl < b.params.minSamplesLeaf || nr < b.params.minSamplesLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			leftSSE := leftSq - leftSum*leftSum/float64(nl)
			rightSSE := rightSq - rightSum*rightSum/float64(nr)

			g := parentSSE - leftSSE - rightSSE
			if g > bestGain {
				bestGain = g
				feature = f
				threshold = (cur + next) / 2
				ok = true
			}
		}
	}

	return feature, threshold, bestGain, ok
}

// bootstrapSample draws n row indices with replacement.
func bootstrapSample(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}
