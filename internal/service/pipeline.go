package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scoreapp/score/internal/client"
	"github.com/scoreapp/score/internal/model"
	"github.com/scoreapp/score/internal/store"
)

// Notifier receives job updates as the pipeline makes them. The websocket hub
// is the production implementation.
type Notifier interface {
	BroadcastProgress(status model.StatusResponse)
	BroadcastComplete(jobID string, result *model.ProcessingResult)
	BroadcastError(jobID string, code, message string)
}

const CodePipelineFailed = "PIPELINE_FAILED"

// Pipeline walks a job through model.PipelineStages.
type Pipeline struct {
	store     store.JobStore
	processor AudioProcessor
	notifier  Notifier
	publisher client.ArtifactPublisher
	outputDir string
	stepDelay time.Duration
	log       *zap.Logger
	now       func() time.Time
}

type PipelineOption func(*Pipeline)

// WithPublisher uploads finished artifacts and reports their public URLs as
// result locators.
func WithPublisher(p client.ArtifactPublisher) PipelineOption {
	return func(pl *Pipeline) {
		pl.publisher = p
	}
}

func WithNotifier(n Notifier) PipelineOption {
	return func(pl *Pipeline) {
		pl.notifier = n
	}
}

func WithPipelineLogger(log *zap.Logger) PipelineOption {
	return func(pl *Pipeline) {
		pl.log = log
	}
}

// WithStepDelay pauses before every stage so progress is observable when the
// processor itself is instantaneous.
func WithStepDelay(d time.Duration) PipelineOption {
	return func(pl *Pipeline) {
		pl.stepDelay = d
	}
}

func NewPipeline(st store.JobStore, processor AudioProcessor, outputDir string, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:     st,
		processor: processor,
		outputDir: outputDir,
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes jobID to completion. A job cancelled through the API stops at
// the next stage boundary and Run returns nil. Stage failures and a cancelled
// ctx are recorded on the job as an error and returned.
func (p *Pipeline) Run(ctx context.Context, jobID string) error {
	job, err := p.store.Update(ctx, jobID, func(job *model.Job) error {
		if job.Status != model.JobStatusQueued {
			return errJobCancelled
		}
		now := p.now()
		job.Status = model.JobStatusProcessing
		job.StartedAt = &now
		return nil
	})
	if errors.Is(err, errJobCancelled) {
		p.log.Info("job not runnable, skipping", zap.String("job_id", jobID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}

	p.log.Info("pipeline started", zap.String("job_id", jobID), zap.String("file", job.FileName))

	outDir := filepath.Join(p.outputDir, jobID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return p.fail(ctx, jobID, fmt.Errorf("failed to create output directory: %w", err))
	}

	var (
		converted string
		midi      string
		musicXML  string
		analysis  *AudioAnalysis
		artifacts = make(map[model.OutputKind]string)
	)

	work := map[string]func() error{
		"convert": func() (err error) {
			converted, err = p.processor.Convert(ctx, job.FilePath, outDir)
			return err
		},
		"analyze": func() (err error) {
			analysis, err = p.processor.Analyze(ctx, converted)
			return err
		},
		"transcribe": func() (err error) {
			midi, err = p.processor.Transcribe(ctx, converted, outDir)
			artifacts[model.OutputMIDI] = midi
			return err
		},
		"musicxml": func() (err error) {
			musicXML, err = p.processor.GenerateMusicXML(ctx, midi, outDir)
			artifacts[model.OutputMusicXML] = musicXML
			return err
		},
		"engrave": func() error {
			ly, pdf, err := p.processor.Engrave(ctx, musicXML, outDir)
			artifacts[model.OutputLilyPond] = ly
			artifacts[model.OutputPDF] = pdf
			return err
		},
		"separate": func() error {
			stems, err := p.processor.Separate(ctx, converted, outDir)
			for kind, path := range stems {
				artifacts[kind] = path
			}
			return err
		},
	}

	for _, stage := range model.PipelineStages {
		if err := p.advance(ctx, jobID, stage); err != nil {
			if errors.Is(err, errJobCancelled) {
				p.log.Info("pipeline stopped, job cancelled", zap.String("job_id", jobID))
				return nil
			}
			if ctx.Err() != nil {
				return p.interrupted(ctx, jobID)
			}
			return p.fail(ctx, jobID, err)
		}

		if p.stepDelay > 0 {
			select {
			case <-ctx.Done():
				return p.interrupted(ctx, jobID)
			case <-time.After(p.stepDelay):
			}
		}

		if fn, ok := work[stage.Name]; ok {
			if err := fn(); err != nil {
				if ctx.Err() != nil {
					return p.interrupted(ctx, jobID)
				}
				return p.fail(ctx, jobID, err)
			}
		}
	}

	return p.complete(ctx, job, analysis, artifacts)
}

func (p *Pipeline) advance(ctx context.Context, jobID string, stage model.PipelineStage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	job, err := p.store.Update(ctx, jobID, func(job *model.Job) error {
		if job.Status != model.JobStatusProcessing {
			return errJobCancelled
		}
		job.Progress = stage.Progress
		job.CurrentStep = stage.Step
		return nil
	})
	if err != nil {
		if errors.Is(err, errJobCancelled) {
			return err
		}
		return fmt.Errorf("failed to update progress: %w", err)
	}

	p.notify(func(n Notifier) {
		n.BroadcastProgress(model.StatusResponse{
			JobID:       job.ID,
			Status:      job.Status,
			Progress:    job.Progress,
			CurrentStep: job.CurrentStep,
		})
	})
	return nil
}

func (p *Pipeline) complete(ctx context.Context, job *model.Job, analysis *AudioAnalysis, artifacts map[model.OutputKind]string) error {
	if analysis == nil {
		return p.fail(ctx, job.ID, errors.New("analysis produced no result"))
	}

	result := &model.ProcessingResult{
		JobID: job.ID,
		OriginalFile: model.OriginalFile{
			Name:     job.FileName,
			Size:     job.FileSize,
			Format:   strings.ToLower(filepath.Ext(job.FileName)),
			Duration: formatDuration(analysis.Duration),
		},
		Analysis:  analysis.Analysis,
		CreatedAt: job.CreatedAt,
	}

	relative := make(map[model.OutputKind]string, len(artifacts))
	var published []string
	for _, kind := range model.ValidOutputKinds {
		path, ok := artifacts[kind]
		if !ok || path == "" {
			continue
		}
		rel, err := filepath.Rel(p.outputDir, path)
		if err != nil {
			return p.fail(ctx, job.ID, fmt.Errorf("artifact outside output directory: %w", err))
		}
		relative[kind] = filepath.ToSlash(rel)

		locator := fmt.Sprintf("/api/download/%s/%s", job.ID, kind)
		if p.publisher != nil {
			if url, err := p.publish(ctx, relative[kind], path, kind); err != nil {
				p.log.Warn("artifact publish failed, serving locally",
					zap.String("job_id", job.ID), zap.String("kind", string(kind)), zap.Error(err))
			} else {
				locator = url
				published = append(published, relative[kind])
			}
		}
		result.Outputs.Set(kind, locator)
	}

	_, err := p.store.Update(ctx, job.ID, func(j *model.Job) error {
		if j.Status != model.JobStatusProcessing {
			return errJobCancelled
		}
		now := p.now()
		j.Status = model.JobStatusCompleted
		j.Progress = 100
		j.CurrentStep = model.StepCompleted
		j.Result = result
		j.Artifacts = relative
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		p.unpublish(published)
		if errors.Is(err, errJobCancelled) {
			p.log.Info("job cancelled before completion", zap.String("job_id", job.ID))
			return nil
		}
		if ctx.Err() != nil {
			return p.interrupted(ctx, job.ID)
		}
		return p.fail(ctx, job.ID, fmt.Errorf("failed to save result: %w", err))
	}

	p.notify(func(n Notifier) {
		n.BroadcastComplete(job.ID, result)
	})
	p.log.Info("pipeline completed", zap.String("job_id", job.ID))
	return nil
}

func (p *Pipeline) publish(ctx context.Context, key, path string, kind model.OutputKind) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return p.publisher.Publish(ctx, key, f, kind.ContentType())
}

func (p *Pipeline) unpublish(keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := p.publisher.Remove(ctx, key); err != nil {
			p.log.Warn("failed to remove published artifact", zap.String("key", key), zap.Error(err))
		}
	}
}

// fail records cause on the job and returns it.
func (p *Pipeline) fail(ctx context.Context, jobID string, cause error) error {
	msg := cause.Error()
	_, err := p.store.Update(context.WithoutCancel(ctx), jobID, func(job *model.Job) error {
		if job.Status.Terminal() {
			return errJobCancelled
		}
		now := p.now()
		job.Status = model.JobStatusError
		job.Error = &msg
		job.CompletedAt = &now
		return nil
	})
	if errors.Is(err, errJobCancelled) {
		p.log.Info("job already finished, failure not recorded", zap.String("job_id", jobID), zap.String("error", msg))
		return cause
	}
	if err != nil {
		p.log.Error("failed to mark job as failed", zap.String("job_id", jobID), zap.Error(err))
	}

	p.notify(func(n Notifier) {
		n.BroadcastError(jobID, CodePipelineFailed, msg)
	})
	p.log.Warn("pipeline failed", zap.String("job_id", jobID), zap.String("error", msg))
	return cause
}

// interrupted fails a job whose context ended before it finished, so a
// requeued or abandoned run never leaves it in processing.
func (p *Pipeline) interrupted(ctx context.Context, jobID string) error {
	return p.fail(ctx, jobID, fmt.Errorf("%w: %v", ErrInterrupted, context.Cause(ctx)))
}

func (p *Pipeline) notify(fn func(Notifier)) {
	if p.notifier != nil {
		fn(p.notifier)
	}
}

func formatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
