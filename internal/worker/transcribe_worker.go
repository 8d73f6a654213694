package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/scoreapp/score/internal/model"
)

// JobRunner runs the processing pipeline for one job.
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// TranscribeWorker processes queued transcription jobs
type TranscribeWorker struct {
	pipeline JobRunner
	log      *zap.Logger
}

// NewTranscribeWorker creates a new transcribe worker
func NewTranscribeWorker(pipeline JobRunner, log *zap.Logger) *TranscribeWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &TranscribeWorker{
		pipeline: pipeline,
		log:      log,
	}
}

// ProcessTask handles transcribe task processing
func (w *TranscribeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.TranscribeJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" {
		return fmt.Errorf("task payload without job id: %w", asynq.SkipRetry)
	}

	w.log.Info("starting transcribe job", zap.String("job_id", payload.JobID))

	if err := w.pipeline.Run(ctx, payload.JobID); err != nil {
		return fmt.Errorf("job %s: %w", payload.JobID, err)
	}
	return nil
}
