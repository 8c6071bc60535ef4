package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ipocast/internal/contracts"
	"github.com/wonny/ipocast/pkg/config"
	"github.com/wonny/ipocast/pkg/logger"
)

func ensembleSettings() config.ModelSettings {
	return config.ModelSettings{
		NumTrees:        15,
		MaxDepth:        8,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		TestSize:        0.2,
		Seed:            42,
	}
}

// trainingFixture builds a feature matrix and aligned targets.
func trainingFixture(n int) (*contracts.FeatureMatrix, contracts.TargetMatrix) {
	rows := make([][]float64, n)
	high := make([]float64, n)
	close0 := make([]float64, n)
	close1 := make([]float64, n)
	for i := 0; i < n; i++ {
		a := float64(i)
		rows[i] = []float64{a, float64(i % 5), float64((i * 3) % 11)}
		high[i] = 30000 + 100*a
		close0[i] = 25000 + 80*a
		close1[i] = 24000 + 70*a
	}
	matrix := &contracts.FeatureMatrix{
		Names: []string{"f0", "f1", "f2"},
		Rows:  rows,
	}
	return matrix, contracts.TargetMatrix{
		contracts.TargetDay0High:  high,
		contracts.TargetDay0Close: close0,
		contracts.TargetDay1Close: close1,
	}
}

func TestEnsemble_TrainAndPredict(t *testing.T) {
	e := NewEnsemble(ensembleSettings(), logger.NewNop())
	matrix, targets := trainingFixture(50)

	report, err := e.Train(matrix, targets)
	require.NoError(t, err)
	require.True(t, e.Fitted())

	assert.Equal(t, 40, report.TrainRows)
	assert.Equal(t, 10, report.TestRows)
	require.Len(t, report.Targets, 3)

	for name, tr := range report.Targets {
		assert.GreaterOrEqual(t, tr.Train.MAE, 0.0, "target %s", name)
		assert.Len(t, tr.Importance, 3, "target %s", name)
	}

	preds, err := e.Predict(matrix)
	require.NoError(t, err)
	for _, name := range contracts.TargetNames() {
		require.Len(t, preds[name], 50, "target %s", name)
	}

	// 세 타깃은 독립 모델이므로 출력이 서로 달라야 한다
	assert.NotEqual(t, preds[contracts.TargetDay0High][10], preds[contracts.TargetDay1Close][10])
}

func TestEnsemble_PredictRequiresTraining(t *testing.T) {
	e := NewEnsemble(ensembleSettings(), logger.NewNop())
	matrix, _ := trainingFixture(10)

	_, err := e.Predict(matrix)
	require.ErrorIs(t, err, ErrNotTrained)
}

func TestEnsemble_TrainIsReproducible(t *testing.T) {
	matrix, targets := trainingFixture(50)

	a := NewEnsemble(ensembleSettings(), logger.NewNop())
	_, err := a.Train(matrix, targets)
	require.NoError(t, err)

	b := NewEnsemble(ensembleSettings(), logger.NewNop())
	_, err = b.Train(matrix, targets)
	require.NoError(t, err)

	pa, err := a.Predict(matrix)
	require.NoError(t, err)
	pb, err := b.Predict(matrix)
	require.NoError(t, err)

	for _, name := range contracts.TargetNames() {
		require.Equal(t, pa[name], pb[name], "target %s", name)
	}
}

func TestEnsemble_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	matrix, targets := trainingFixture(50)

	src := NewEnsemble(ensembleSettings(), logger.NewNop())
	_, err := src.Train(matrix, targets)
	require.NoError(t, err)
	require.NoError(t, src.Save(dir))

	want, err := src.Predict(matrix)
	require.NoError(t, err)

	dst := NewEnsemble(ensembleSettings(), logger.NewNop())
	require.NoError(t, dst.Load(dir))

	got, err := dst.Predict(matrix)
	require.NoError(t, err)

	for _, name := range contracts.TargetNames() {
		require.Equal(t, want[name], got[name], "target %s", name)
	}
}

func TestEnsemble_LoadIncompleteSet(t *testing.T) {
	dir := t.TempDir()
	matrix, targets := trainingFixture(50)

	src := NewEnsemble(ensembleSettings(), logger.NewNop())
	_, err := src.Train(matrix, targets)
	require.NoError(t, err)
	require.NoError(t, src.Save(dir))

	// 3개 중 1개 삭제 - 로드는 실패해야 한다
	require.NoError(t, os.Remove(filepath.Join(dir, modelFileName(contracts.TargetDay1Close))))

	dst := NewEnsemble(ensembleSettings(), logger.NewNop())
	err = dst.Load(dir)
	require.ErrorIs(t, err, ErrIncompleteModelSet)
	assert.False(t, dst.Fitted())
}

func TestEnsemble_SaveRequiresTraining(t *testing.T) {
	e := NewEnsemble(ensembleSettings(), logger.NewNop())
	require.ErrorIs(t, e.Save(t.TempDir()), ErrNotTrained)
}

func TestEnsemble_FeatureWidthMismatch(t *testing.T) {
	e := NewEnsemble(ensembleSettings(), logger.NewNop())
	matrix, targets := trainingFixture(50)
	_, err := e.Train(matrix, targets)
	require.NoError(t, err)

	narrow := &contracts.FeatureMatrix{
		Names: []string{"f0"},
		Rows:  [][]float64{{1}},
	}
	_, err = e.Predict(narrow)
	require.Error(t, err)
}

func TestSplitIndices(t *testing.T) {
	train, test := splitIndices(10, 0.2, 42)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)

	// 동일 시드는 동일 분할
	train2, test2 := splitIndices(10, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	// 전 인덱스가 정확히 한 번씩
	seen := map[int]bool{}
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d duplicated", i)
		seen[i] = true
	}
	assert.Len(t, seen, 10)
}

func TestEvaluate_PerfectPrediction(t *testing.T) {
	y := []float64{10, 20, 30}
	m := evaluate(y, []float64{10, 20, 30})

	assert.Zero(t, m.MAE)
	assert.Zero(t, m.RMSE)
	assert.InDelta(t, 1.0, m.R2, 1e-12)
	assert.Zero(t, m.MAPE)
}
