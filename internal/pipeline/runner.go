package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/ipocast/internal/contracts"
	"github.com/wonny/ipocast/internal/features"
	"github.com/wonny/ipocast/internal/model"
	"github.com/wonny/ipocast/internal/predict"
	"github.com/wonny/ipocast/pkg/config"
	"github.com/wonny/ipocast/pkg/logger"
)

// Stage is a pipeline run stage, broadcast to dashboard clients.
type Stage string

const (
	StageCollecting   Stage = "collecting"
	StageTransforming Stage = "transforming"
	StagePredicting   Stage = "predicting"
	StageAssembling   Stage = "assembling"
	StageWritten      Stage = "written"
	StageTraining     Stage = "training"
	StageTrained      Stage = "trained"
	StageFailed       Stage = "failed"
)

// RunEvent notifies a stage transition of a pipeline run.
type RunEvent struct {
	RunID string    `json:"run_id"`
	Job   string    `json:"job"` // generate | retrain
	Stage Stage     `json:"stage"`
	At    time.Time `json:"at"`
	Error string    `json:"error,omitempty"`
}

// EventSink receives run events. 웹소켓 허브가 구현한다.
type EventSink interface {
	Publish(event RunEvent)
}

// nopSink drops events when no hub is attached (CLI one-shot runs).
type nopSink struct{}

func (nopSink) Publish(RunEvent) {}

// RunStatus is the last known state of the pipeline, served by the API.
type RunStatus struct {
	RunID      string     `json:"run_id"`
	Job        string     `json:"job"`
	Stage      Stage      `json:"stage"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// TransformerFileName is the fitted encoder/scaler bundle file.
const TransformerFileName = "transformers.json"

// Source supplies IPO records to the pipeline. *collector.Collector가
// 구현한다.
type Source interface {
	CollectListings(ctx context.Context) (int, error)
	CollectOutcomes(ctx context.Context, asOf time.Time) (int, error)
	LoadRecords(ctx context.Context) ([]contracts.RawIPORecord, error)
}

// Runner drives the batch pipeline: collect, transform, predict, write.
// ⭐ SSOT: 파이프라인 실행 순서는 여기서만
//
// A run never mutates the published artifact until the final atomic
// write; a failed run leaves the previous artifact in place.
type Runner struct {
	source   Source
	engineer *features.Engineer
	ensemble *model.Ensemble
	cfg      *config.Config
	sink     EventSink
	logger   *logger.Logger

	mu      sync.Mutex // 동시 실행 방지
	statusM sync.RWMutex
	status  *RunStatus
}

// NewRunner creates a pipeline runner.
func NewRunner(source Source, eng *features.Engineer, ens *model.Ensemble, cfg *config.Config, log *logger.Logger) *Runner {
	return &Runner{
		source: source,
		engineer:  eng,
		ensemble:  ens,
		cfg:       cfg,
		sink:      nopSink{},
		logger:    log.WithComponent("pipeline"),
	}
}

// WithSink attaches an event sink for stage broadcasts.
func (r *Runner) WithSink(sink EventSink) *Runner {
	r.sink = sink
	return r
}

// Status returns a copy of the last run status, nil if never ran.
func (r *Runner) Status() *RunStatus {
	r.statusM.RLock()
	defer r.statusM.RUnlock()
	if r.status == nil {
		return nil
	}
	s := *r.status
	return &s
}

func (r *Runner) transformerPath() string {
	return filepath.Join(r.cfg.Paths.TransformersDir, TransformerFileName)
}

// LoadState restores the fitted transformer and trained models from disk.
// 학습 없이 generate만 돌릴 때 시작 시 호출한다.
func (r *Runner) LoadState() error {
	if err := r.engineer.Load(r.transformerPath()); err != nil {
		return fmt.Errorf("load transformer bundle: %w", err)
	}
	if err := r.ensemble.Load(r.cfg.Paths.ModelsDir); err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	return nil
}

func (r *Runner) beginRun(job string) *RunStatus {
	status := &RunStatus{
		RunID:     uuid.NewString(),
		Job:       job,
		StartedAt: time.Now(),
	}
	r.statusM.Lock()
	r.status = status
	r.statusM.Unlock()
	return status
}

func (r *Runner) advance(status *RunStatus, stage Stage) {
	r.statusM.Lock()
	status.Stage = stage
	if stage == StageWritten || stage == StageTrained || stage == StageFailed {
		now := time.Now()
		status.FinishedAt = &now
	}
	r.statusM.Unlock()

	r.sink.Publish(RunEvent{
		RunID: status.RunID,
		Job:   status.Job,
		Stage: stage,
		At:    time.Now(),
		Error: status.Error,
	})
}

func (r *Runner) fail(status *RunStatus, err error) error {
	r.statusM.Lock()
	status.Error = err.Error()
	r.statusM.Unlock()

	r.advance(status, StageFailed)
	r.logger.WithFields(map[string]interface{}{
		"run_id": status.RunID,
		"job":    status.Job,
		"error":  err.Error(),
	}).Error("Pipeline run failed")
	return err
}

// Generate runs the daily pipeline: collect, transform, predict, write
// the artifact. Fitted state must already be in memory or on disk.
func (r *Runner) Generate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.beginRun("generate")
	r.logger.WithField("run_id", status.RunID).Info("Starting generate run")

	if !r.engineer.Fitted() || !r.ensemble.Fitted() {
		if err := r.LoadState(); err != nil {
			return r.fail(status, err)
		}
	}

	r.advance(status, StageCollecting)
	if _, err := r.source.CollectListings(ctx); err != nil {
		return r.fail(status, err)
	}
	if _, err := r.source.CollectOutcomes(ctx, time.Now()); err != nil {
		return r.fail(status, err)
	}

	records, err := r.source.LoadRecords(ctx)
	if err != nil {
		return r.fail(status, fmt.Errorf("load records: %w", err))
	}

	r.advance(status, StageTransforming)
	r.advance(status, StagePredicting)

	gen := predict.NewGenerator(r.engineer, r.ensemble, r.cfg.Model, r.logger)
	artifact, err := gen.Generate(records)
	if err != nil {
		return r.fail(status, err)
	}

	r.advance(status, StageAssembling)
	if err := gen.Write(artifact, r.cfg.Paths.OutputFile); err != nil {
		return r.fail(status, err)
	}

	r.advance(status, StageWritten)
	r.logger.WithFields(map[string]interface{}{
		"run_id": status.RunID,
		"total":  artifact.Metadata.TotalIPOs,
	}).Info("Generate run complete")
	return nil
}

// Retrain refits the transformer and retrains the models on all records
// with observed outcomes, then persists both. 실행 중인 generate와는
// 상호 배타적이다.
func (r *Runner) Retrain(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.beginRun("retrain")
	r.logger.WithField("run_id", status.RunID).Info("Starting retrain run")

	r.advance(status, StageCollecting)
	if _, err := r.source.CollectOutcomes(ctx, time.Now()); err != nil {
		return r.fail(status, err)
	}

	records, err := r.source.LoadRecords(ctx)
	if err != nil {
		return r.fail(status, fmt.Errorf("load records: %w", err))
	}

	r.advance(status, StageTraining)

	matrix, targets, _, err := r.engineer.FitTransform(records)
	if err != nil {
		return r.fail(status, fmt.Errorf("fit transform: %w", err))
	}

	report, err := r.ensemble.Train(matrix, targets)
	if err != nil {
		return r.fail(status, fmt.Errorf("train: %w", err))
	}

	if err := r.engineer.Save(r.transformerPath()); err != nil {
		return r.fail(status, fmt.Errorf("save transformer bundle: %w", err))
	}
	if err := r.ensemble.Save(r.cfg.Paths.ModelsDir); err != nil {
		return r.fail(status, fmt.Errorf("save models: %w", err))
	}

	r.advance(status, StageTrained)
	r.logger.WithFields(map[string]interface{}{
		"run_id":     status.RunID,
		"train_rows": report.TrainRows,
		"test_rows":  report.TestRows,
	}).Info("Retrain run complete")
	return nil
}
