package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ipocast/internal/contracts"
	"github.com/wonny/ipocast/internal/features"
	"github.com/wonny/ipocast/internal/model"
	"github.com/wonny/ipocast/pkg/config"
	"github.com/wonny/ipocast/pkg/logger"
)

// fakeSource serves a fixed record set without scraping or DB access.
type fakeSource struct {
	records []contracts.RawIPORecord
	loadErr error

	collectListings int
	collectOutcomes int
}

func (f *fakeSource) CollectListings(ctx context.Context) (int, error) {
	f.collectListings++
	return len(f.records), nil
}

func (f *fakeSource) CollectOutcomes(ctx context.Context, asOf time.Time) (int, error) {
	f.collectOutcomes++
	return 0, nil
}

func (f *fakeSource) LoadRecords(ctx context.Context) ([]contracts.RawIPORecord, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.records, nil
}

// recordingSink captures published run events in order.
type recordingSink struct {
	mu     sync.Mutex
	events []RunEvent
}

func (s *recordingSink) Publish(e RunEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) stages() []Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stage, len(s.events))
	for i, e := range s.events {
		out[i] = e.Stage
	}
	return out
}

func fp(v float64) *float64 { return &v }

func fixtureRecords(n int) []contracts.RawIPORecord {
	records := make([]contracts.RawIPORecord, 0, n)
	for i := 0; i < n; i++ {
		base := 10000.0 + float64(i)*500
		records = append(records, contracts.RawIPORecord{
			Code:                        fmt.Sprintf("%d", 200000+i),
			CompanyName:                 fmt.Sprintf("파이프기업%d", i),
			ListingDate:                 time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i*7),
			PriceLower:                  base * 0.9,
			PriceUpper:                  base * 1.1,
			PriceConfirmed:              base,
			SharesOffered:               500_000,
			PaidInCapital:               3e10,
			EstimatedMarketCap:          base * 8e5,
			InstitutionalDemandRate:     400 + float64(i)*25,
			SubscriptionCompetitionRate: 600 + float64(i)*40,
			LockupRatio:                 5 + float64(i),
			AllocationEqualPct:          50,
			AllocationProportionalPct:   50,
			ListingMethod:               "일반상장",
			Industry:                    "반도체",
			Theme:                       "AI",
			Day0High:                    fp(base * 1.7),
			Day0Close:                   fp(base * 1.5),
			Day1Close:                   fp(base * 1.4),
		})
	}
	return records
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Model: config.ModelSettings{
			Type: "random_forest", Version: "v2.0",
			NumTrees: 10, MaxDepth: 5, MinSamplesSplit: 2, MinSamplesLeaf: 1,
			TestSize: 0.2, Seed: 42,
			HighCompetitionThreshold: 1000, HighDemandThreshold: 500,
		},
		Paths: config.PathsConfig{
			ModelsDir:       filepath.Join(dir, "models"),
			TransformersDir: filepath.Join(dir, "transformers"),
			OutputFile:      filepath.Join(dir, "output", "ipo_predictions.json"),
		},
	}
}

func newRunner(t *testing.T, source Source, cfg *config.Config) (*Runner, *recordingSink) {
	t.Helper()
	log := logger.NewNop()
	eng := features.NewEngineer(cfg.Model, log)
	ens := model.NewEnsemble(cfg.Model, log)
	sink := &recordingSink{}
	return NewRunner(source, eng, ens, cfg, log).WithSink(sink), sink
}

func TestRetrainThenGenerate(t *testing.T) {
	cfg := testConfig(t)
	source := &fakeSource{records: fixtureRecords(12)}
	runner, sink := newRunner(t, source, cfg)

	ctx := context.Background()
	require.NoError(t, runner.Retrain(ctx))

	// persisted state exists
	_, err := os.Stat(filepath.Join(cfg.Paths.TransformersDir, TransformerFileName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Paths.ModelsDir, "metrics.json"))
	require.NoError(t, err)

	require.NoError(t, runner.Generate(ctx))

	raw, err := os.ReadFile(cfg.Paths.OutputFile)
	require.NoError(t, err)
	var artifact contracts.PredictionArtifact
	require.NoError(t, json.Unmarshal(raw, &artifact))
	assert.Equal(t, 12, artifact.Metadata.TotalIPOs)

	assert.Equal(t, 1, source.collectListings)
	assert.Equal(t, 2, source.collectOutcomes) // retrain + generate

	assert.Equal(t, []Stage{
		StageCollecting, StageTraining, StageTrained,
		StageCollecting, StageTransforming, StagePredicting, StageAssembling, StageWritten,
	}, sink.stages())

	status := runner.Status()
	require.NotNil(t, status)
	assert.Equal(t, "generate", status.Job)
	assert.Equal(t, StageWritten, status.Stage)
	assert.NotNil(t, status.FinishedAt)
	assert.NotEmpty(t, status.RunID)
}

func TestGenerate_LoadsPersistedState(t *testing.T) {
	cfg := testConfig(t)
	source := &fakeSource{records: fixtureRecords(12)}

	trainer, _ := newRunner(t, source, cfg)
	require.NoError(t, trainer.Retrain(context.Background()))

	// fresh runner with cold in-memory state
	fresh, _ := newRunner(t, source, cfg)
	require.NoError(t, fresh.Generate(context.Background()))

	_, err := os.Stat(cfg.Paths.OutputFile)
	assert.NoError(t, err)
}

func TestGenerate_FailureLeavesPreviousArtifact(t *testing.T) {
	cfg := testConfig(t)
	source := &fakeSource{records: fixtureRecords(12)}
	runner, _ := newRunner(t, source, cfg)

	ctx := context.Background()
	require.NoError(t, runner.Retrain(ctx))
	require.NoError(t, runner.Generate(ctx))

	before, err := os.ReadFile(cfg.Paths.OutputFile)
	require.NoError(t, err)

	source.loadErr = fmt.Errorf("connection refused")
	err = runner.Generate(ctx)
	require.Error(t, err)

	after, readErr := os.ReadFile(cfg.Paths.OutputFile)
	require.NoError(t, readErr)
	assert.Equal(t, before, after)

	status := runner.Status()
	require.NotNil(t, status)
	assert.Equal(t, StageFailed, status.Stage)
	assert.Contains(t, status.Error, "connection refused")
}

func TestGenerate_WithoutTrainedState(t *testing.T) {
	cfg := testConfig(t)
	source := &fakeSource{records: fixtureRecords(12)}
	runner, sink := newRunner(t, source, cfg)

	err := runner.Generate(context.Background())
	require.Error(t, err)
	assert.Equal(t, []Stage{StageFailed}, sink.stages())
}

func TestRetrain_FailsWithoutEligibleRecords(t *testing.T) {
	cfg := testConfig(t)
	records := fixtureRecords(3)
	for i := range records {
		records[i].Day0High = nil
		records[i].Day0Close = nil
		records[i].Day1Close = nil
	}
	runner, _ := newRunner(t, &fakeSource{records: records}, cfg)

	err := runner.Retrain(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, features.ErrNoTrainingRecords)
}
