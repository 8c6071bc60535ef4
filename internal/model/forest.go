package model

import (
	"fmt"
	"math/rand"
)

// ForestParams holds the regression-forest hyperparameters.
type ForestParams struct {
	NumTrees        int   `json:"num_trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Seed            int64 `json:"seed"`
}

// Forest is a fitted bagging ensemble of regression trees for one target.
// 같은 시드로 학습하면 항상 같은 모델이 나온다.
type Forest struct {
	Params      ForestParams      `json:"params"`
	NumFeatures int               `json:"num_features"`
	Trees       []*regressionTree `json:"trees"`
	Importances []float64         `json:"importances"` // per feature, sums to 1
}

// TrainForest fits a forest on the full matrix x against target y.
// Each tree trains on its own bootstrap sample seeded from the base seed
// plus the tree index.
func TrainForest(x [][]float64, y []float64, params ForestParams) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("invalid training shape: %d rows, %d targets", len(x), len(y))
	}

	numFeatures := len(x[0])
	f := &Forest{
		Params:      params,
		NumFeatures: numFeatures,
		Trees:       make([]*regressionTree, params.NumTrees),
		Importances: make([]float64, numFeatures),
	}

	tp := treeParams{
		maxDepth:        params.MaxDepth,
		minSamplesSplit: params.MinSamplesSplit,
		minSamplesLeaf:  params.MinSamplesLeaf,
	}

	for i := 0; i < params.NumTrees; i++ {
		rng := rand.New(rand.NewSource(params.Seed + int64(i)))
		idx := bootstrapSample(len(x), rng)
		f.Trees[i] = growTree(x, y, idx, tp, f.Importances)
	}

	// 피처 중요도 정규화 (합=1)
	total := 0.0
	for _, v := range f.Importances {
		total += v
	}
	if total > 0 {
		for i := range f.Importances {
			f.Importances[i] /= total
		}
	}

	return f, nil
}

// Predict returns the forest prediction for one feature row: the mean of
// the per-tree predictions.
func (f *Forest) Predict(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.Trees {
		sum += t.predict(row)
	}
	return sum / float64(len(f.Trees))
}

// PredictBatch predicts every row.
func (f *Forest) PredictBatch(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = f.Predict(row)
	}
	return out
}
