package model

import (
	"math"
	"testing"
)

// syntheticData builds rows where the target is a simple function of the
// first feature, so a shallow forest can fit it tightly.
func syntheticData(n int) ([][]float64, []float64) {
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := float64(i)
		b := float64(i % 7)
		c := float64((i * 13) % 5)
		x[i] = []float64{a, b, c}
		y[i] = 1000 + 50*a
	}
	return x, y
}

func testParams() ForestParams {
	return ForestParams{
		NumTrees:        20,
		MaxDepth:        8,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

func TestTrainForest_LearnsMonotoneTarget(t *testing.T) {
	x, y := syntheticData(60)

	f, err := TrainForest(x, y, testParams())
	if err != nil {
		t.Fatalf("TrainForest failed: %v", err)
	}

	// 낮은 행은 낮게, 높은 행은 높게
	low := f.Predict([]float64{5, 5, 0})
	high := f.Predict([]float64{55, 6, 2})
	if low >= high {
		t.Errorf("Predict(low) = %v >= Predict(high) = %v", low, high)
	}
	if math.Abs(low-1250) > 500 {
		t.Errorf("Predict(low) = %v, want near 1250", low)
	}
}

func TestTrainForest_DeterministicWithSeed(t *testing.T) {
	x, y := syntheticData(50)

	a, err := TrainForest(x, y, testParams())
	if err != nil {
		t.Fatalf("TrainForest failed: %v", err)
	}
	b, err := TrainForest(x, y, testParams())
	if err != nil {
		t.Fatalf("TrainForest failed: %v", err)
	}

	probe := [][]float64{{3, 1, 4}, {25, 0, 2}, {49, 6, 4}}
	for _, row := range probe {
		pa, pb := a.Predict(row), b.Predict(row)
		if pa != pb {
			t.Errorf("same seed produced different predictions: %v vs %v", pa, pb)
		}
	}
}

func TestTrainForest_DifferentSeedsDiffer(t *testing.T) {
	x, y := syntheticData(50)

	a, _ := TrainForest(x, y, testParams())
	params := testParams()
	params.Seed = 7
	b, _ := TrainForest(x, y, params)

	// 부트스트랩이 달라지므로 대개 예측도 달라진다
	same := true
	for _, row := range [][]float64{{3, 1, 4}, {25, 0, 2}, {49, 6, 4}} {
		if a.Predict(row) != b.Predict(row) {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical forests on all probes")
	}
}

func TestTrainForest_ImportancesNormalized(t *testing.T) {
	x, y := syntheticData(60)

	f, err := TrainForest(x, y, testParams())
	if err != nil {
		t.Fatalf("TrainForest failed: %v", err)
	}

	sum := 0.0
	for _, v := range f.Importances {
		if v < 0 {
			t.Errorf("negative importance: %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances sum = %v, want 1", sum)
	}

	// 타깃을 결정하는 첫 피처가 가장 중요해야 한다
	if f.Importances[0] < f.Importances[1] || f.Importances[0] < f.Importances[2] {
		t.Errorf("feature 0 should dominate importances: %v", f.Importances)
	}
}

func TestTrainForest_InvalidShape(t *testing.T) {
	if _, err := TrainForest(nil, nil, testParams()); err == nil {
		t.Error("TrainForest should fail on empty input")
	}
	if _, err := TrainForest([][]float64{{1}}, []float64{1, 2}, testParams()); err == nil {
		t.Error("TrainForest should fail on row/target mismatch")
	}
}

func TestForest_ConstantTarget(t *testing.T) {
	x := [][]float64{{1, 0}, {2, 0}, {3, 0}, {4, 0}}
	y := []float64{7, 7, 7, 7}

	f, err := TrainForest(x, y, testParams())
	if err != nil {
		t.Fatalf("TrainForest failed: %v", err)
	}

	if got := f.Predict([]float64{2.5, 0}); got != 7 {
		t.Errorf("Predict = %v, want 7 for constant target", got)
	}
}
