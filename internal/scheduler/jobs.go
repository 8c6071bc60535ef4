package scheduler

import (
	"context"
)

// PipelineRunner is the pipeline surface the jobs drive.
type PipelineRunner interface {
	Generate(ctx context.Context) error
	Retrain(ctx context.Context) error
}

// GenerateJob runs the daily collect-and-generate pipeline.
// 평일 장 마감 후 실행한다.
type GenerateJob struct {
	runner   PipelineRunner
	schedule string
}

// NewGenerateJob creates the daily generate job.
func NewGenerateJob(runner PipelineRunner, schedule string) *GenerateJob {
	return &GenerateJob{runner: runner, schedule: schedule}
}

func (j *GenerateJob) Name() string     { return "generate" }
func (j *GenerateJob) Schedule() string { return j.schedule }

func (j *GenerateJob) Run(ctx context.Context) error {
	return j.runner.Generate(ctx)
}

// RetrainJob refits the transformer and retrains the models.
// 주말에 실행. 관측 결과가 쌓일수록 학습 집합이 커진다.
type RetrainJob struct {
	runner   PipelineRunner
	schedule string
}

// NewRetrainJob creates the weekly retrain job.
func NewRetrainJob(runner PipelineRunner, schedule string) *RetrainJob {
	return &RetrainJob{runner: runner, schedule: schedule}
}

func (j *RetrainJob) Name() string     { return "retrain" }
func (j *RetrainJob) Schedule() string { return j.schedule }

func (j *RetrainJob) Run(ctx context.Context) error {
	return j.runner.Retrain(ctx)
}
