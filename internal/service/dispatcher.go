package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/scoreapp/score/internal/model"
)

const (
	TaskTypeTranscribe = "score:transcribe"
	QueueTranscribe    = "transcribe"
)

// Dispatcher hands an accepted job to the pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// AsynqDispatcher enqueues jobs for a TranscribeWorker.
type AsynqDispatcher struct {
	asynqClient *asynq.Client
}

func NewAsynqDispatcher(asynqClient *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{asynqClient: asynqClient}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID string) error {
	task, err := NewTranscribeTask(jobID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	// Failed stages are recorded on the job; retrying would restart a job
	// the client already saw fail.
	_, err = d.asynqClient.EnqueueContext(ctx, task,
		asynq.Queue(QueueTranscribe),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func NewTranscribeTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(model.TranscribeJobPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTranscribe, data), nil
}

// LocalDispatcher runs each job on its own goroutine in this process.
type LocalDispatcher struct {
	pipeline *Pipeline
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLocalDispatcher(pipeline *Pipeline, log *zap.Logger) *LocalDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalDispatcher{
		pipeline: pipeline,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, jobID string) error {
	if err := d.ctx.Err(); err != nil {
		return fmt.Errorf("dispatcher stopped: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.pipeline.Run(d.ctx, jobID); err != nil {
			d.log.Warn("job failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}()
	return nil
}

// Close stops running pipelines and waits for them to return.
func (d *LocalDispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

// Wait blocks until every dispatched job has finished.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
