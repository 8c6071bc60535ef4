package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/wonny/ipocast/internal/contracts"
	"github.com/wonny/ipocast/pkg/config"
	"github.com/wonny/ipocast/pkg/logger"
)

var (
	// ErrNotTrained is returned when Predict is called before Train/Load.
	ErrNotTrained = errors.New("predictor ensemble is not trained")

	// ErrIncompleteModelSet is returned when loading finds fewer than the
	// three target models.
	ErrIncompleteModelSet = errors.New("incomplete model set")
)

// Metrics holds regression evaluation metrics for one partition.
type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
	MAPE float64 `json:"mape"`
}

// TargetReport holds train/test metrics and feature importances for one
// prediction target.
type TargetReport struct {
	Train      Metrics            `json:"train"`
	Test       Metrics            `json:"test"`
	Importance map[string]float64 `json:"feature_importance"`
}

// EvaluationReport maps target name to its report.
type EvaluationReport struct {
	TrainRows int                     `json:"train_rows"`
	TestRows  int                     `json:"test_rows"`
	Targets   map[string]TargetReport `json:"targets"`
}

// Ensemble owns the three per-target regression forests and trains and
// applies them as a unit.
// ⭐ SSOT: 가격 예측 모델은 여기서만
type Ensemble struct {
	cfg     config.ModelSettings
	logger  *logger.Logger
	forests map[string]*Forest
	report  *EvaluationReport
}

// NewEnsemble creates an untrained ensemble.
func NewEnsemble(cfg config.ModelSettings, log *logger.Logger) *Ensemble {
	return &Ensemble{
		cfg:     cfg,
		logger:  log.WithComponent("model.ensemble"),
		forests: make(map[string]*Forest),
	}
}

// Fitted reports whether all three target models are available.
func (e *Ensemble) Fitted() bool {
	for _, name := range contracts.TargetNames() {
		if e.forests[name] == nil {
			return false
		}
	}
	return true
}

// Report returns the evaluation report from the last Train call, nil if
// the ensemble was loaded from disk.
func (e *Ensemble) Report() *EvaluationReport {
	return e.report
}

// Train splits the rows into train/test partitions with the configured
// seed, fits one forest per target on the train partition and evaluates
// both partitions. Replaces any previously fitted models as a whole.
func (e *Ensemble) Train(matrix *contracts.FeatureMatrix, targets contracts.TargetMatrix) (*EvaluationReport, error) {
	n := matrix.NumRows()
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 training rows, got %d", n)
	}
	for _, name := range contracts.TargetNames() {
		if len(targets[name]) != n {
			return nil, fmt.Errorf("target %s has %d rows, features have %d", name, len(targets[name]), n)
		}
	}

	trainIdx, testIdx := splitIndices(n, e.cfg.TestSize, e.cfg.Seed)

	trainX := gatherRows(matrix.Rows, trainIdx)
	testX := gatherRows(matrix.Rows, testIdx)

	params := ForestParams{
		NumTrees:        e.cfg.NumTrees,
		MaxDepth:        e.cfg.MaxDepth,
		MinSamplesSplit: e.cfg.MinSamplesSplit,
		MinSamplesLeaf:  e.cfg.MinSamplesLeaf,
		Seed:            e.cfg.Seed,
	}

	report := &EvaluationReport{
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
		Targets:   make(map[string]TargetReport),
	}
	forests := make(map[string]*Forest, 3)

	for _, name := range contracts.TargetNames() {
		y := targets[name]
		trainY := gatherValues(y, trainIdx)
		testY := gatherValues(y, testIdx)

		forest, err := TrainForest(trainX, trainY, params)
		if err != nil {
			return nil, fmt.Errorf("train %s: %w", name, err)
		}
		forests[name] = forest

		tr := TargetReport{
			Train:      evaluate(trainY, forest.PredictBatch(trainX)),
			Test:       evaluate(testY, forest.PredictBatch(testX)),
			Importance: importanceByName(matrix.Names, forest.Importances),
		}
		report.Targets[name] = tr

		e.logger.WithFields(map[string]interface{}{
			"target":    name,
			"train_mae": tr.Train.MAE,
			"test_mae":  tr.Test.MAE,
			"test_r2":   tr.Test.R2,
		}).Info("Trained target model")
	}

	// 세 모델이 모두 성공했을 때만 교체 (부분 갱신 금지)
	e.forests = forests
	e.report = report
	return report, nil
}

// Predict applies all three models to the feature matrix. Outputs are the
// raw float predictions; rounding to KRW happens once at artifact
// assembly, not here.
func (e *Ensemble) Predict(matrix *contracts.FeatureMatrix) (map[string][]float64, error) {
	if !e.Fitted() {
		return nil, ErrNotTrained
	}

	out := make(map[string][]float64, 3)
	for _, name := range contracts.TargetNames() {
		forest := e.forests[name]
		if forest.NumFeatures != matrix.NumFeatures() {
			return nil, fmt.Errorf("model %s expects %d features, matrix has %d",
				name, forest.NumFeatures, matrix.NumFeatures())
		}
		out[name] = forest.PredictBatch(matrix.Rows)
	}
	return out, nil
}

// splitIndices shuffles 0..n-1 with the given seed and carves off the
// trailing testSize fraction as the test partition.
func splitIndices(n int, testSize float64, seed int64) (train, test []int) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	testCount := int(math.Ceil(float64(n) * testSize))
	if testCount >= n {
		testCount = n - 1
	}

	cut := n - testCount
	return idx[:cut], idx[cut:]
}

// evaluate computes MAE, RMSE, R2 and MAPE.
func evaluate(actual, predicted []float64) Metrics {
	n := float64(len(actual))
	if n == 0 {
		return Metrics{}
	}

	var absSum, sqSum, mean float64
	for _, v := range actual {
		mean += v
	}
	mean /= n

	var ssTot, mapeSum float64
	mapeCount := 0
	for i, a := range actual {
		d := predicted[i] - a
		absSum += math.Abs(d)
		sqSum += d * d
		ssTot += (a - mean) * (a - mean)
		if a != 0 {
			mapeSum += math.Abs(d / a)
			mapeCount++
		}
	}

	m := Metrics{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
	}
	if ssTot > 0 {
		m.R2 = 1 - sqSum/ssTot
	}
	if mapeCount > 0 {
		m.MAPE = mapeSum / float64(mapeCount) * 100
	}
	return m
}

func importanceByName(names []string, importances []float64) map[string]float64 {
	out := make(map[string]float64, len(names))
	for i, name := range names {
		if i < len(importances) {
			out[name] = importances[i]
		}
	}
	return out
}

func gatherRows(rows [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

func gatherValues(vals []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = vals[j]
	}
	return out
}
