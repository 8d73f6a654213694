package client

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scoreapp/score/internal/model"
)

// SimulatedTransport satisfies Transport in-process. Job status is derived from
// the time elapsed since upload, walking model.PipelineStages at a fixed stage
// duration, so a given clock always produces the same sequence of updates.
type SimulatedTransport struct {
	mu   sync.Mutex
	jobs map[string]*simJob

	now           func() time.Time
	stageDuration time.Duration
	uploadChunks  int
	uploadDelay   time.Duration
	failStage     int
	failMessage   string
	failDownloads bool
	unreachable   bool
}

type simJob struct {
	id        string
	name      string
	size      int64
	started   time.Time
	cancelled bool
}

type SimOption func(*SimulatedTransport)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SimOption {
	return func(s *SimulatedTransport) {
		s.now = now
	}
}

// WithStageDuration sets how long each pipeline stage takes.
func WithStageDuration(d time.Duration) SimOption {
	return func(s *SimulatedTransport) {
		s.stageDuration = d
	}
}

// WithUploadPacing reports upload progress in chunks steps, delay apart.
func WithUploadPacing(chunks int, delay time.Duration) SimOption {
	return func(s *SimulatedTransport) {
		if chunks > 0 {
			s.uploadChunks = chunks
		}
		s.uploadDelay = delay
	}
}

// WithFailure makes every job fail with message once it reaches stage.
func WithFailure(stage int, message string) SimOption {
	return func(s *SimulatedTransport) {
		s.failStage = stage
		s.failMessage = message
	}
}

// WithFailingDownloads makes every Download return a *DownloadError.
func WithFailingDownloads() SimOption {
	return func(s *SimulatedTransport) {
		s.failDownloads = true
	}
}

// NewSimulatedTransport creates a simulator with two-second stages.
func NewSimulatedTransport(opts ...SimOption) *SimulatedTransport {
	s := &SimulatedTransport{
		jobs:          make(map[string]*simJob),
		now:           time.Now,
		stageDuration: 2 * time.Second,
		uploadChunks:  10,
		uploadDelay:   50 * time.Millisecond,
		failStage:     -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SimulatedTransport) Upload(ctx context.Context, file File, onProgress ProgressFunc) (*model.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(file.Name))
	if !model.AllowedExtensions[ext] {
		return nil, &UploadError{StatusCode: 400, Message: fmt.Sprintf("unsupported file format %q", ext)}
	}

	size := file.Size
	if file.Body != nil {
		n, err := io.Copy(io.Discard, file.Body)
		if err != nil {
			return nil, &UploadError{Err: err}
		}
		if size <= 0 {
			size = n
		}
	}

	for i := 1; i <= s.uploadChunks; i++ {
		if s.uploadDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, &UploadError{Err: ctx.Err()}
			case <-time.After(s.uploadDelay):
			}
		} else if err := ctx.Err(); err != nil {
			return nil, &UploadError{Err: err}
		}
		if onProgress != nil {
			onProgress(float64(i) / float64(s.uploadChunks))
		}
	}

	job := &simJob{
		id:   uuid.New().String(),
		name: file.Name,
		size: size,
	}

	s.mu.Lock()
	job.started = s.now()
	s.jobs[job.id] = job
	s.mu.Unlock()

	return &model.UploadResponse{
		Success: true,
		JobID:   job.id,
		Message: "File uploaded, processing started",
	}, nil
}

func (s *SimulatedTransport) PollStatus(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unreachable {
		return nil, &TransportError{Op: "status", JobID: jobID, Message: "service unreachable"}
	}

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, &TransportError{Op: "status", JobID: jobID, StatusCode: 404, Err: ErrJobNotFound}
	}
	status := s.statusAt(job, s.now())
	return &status, nil
}

func (s *SimulatedTransport) FetchResult(ctx context.Context, jobID string) (*model.ProcessingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, &TransportError{Op: "result", JobID: jobID, StatusCode: 404, Err: ErrJobNotFound}
	}
	if s.statusAt(job, s.now()).Status != model.JobStatusCompleted {
		return nil, &TransportError{Op: "result", JobID: jobID, StatusCode: 400, Err: ErrNotReady}
	}
	return synthesizeResult(job), nil
}

func (s *SimulatedTransport) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[jobID]; ok {
		job.cancelled = true
	}
	return nil
}

func (s *SimulatedTransport) Download(ctx context.Context, locator string, w io.Writer) error {
	if s.failDownloads {
		return &DownloadError{Locator: locator, StatusCode: 404}
	}
	if _, err := fmt.Fprintf(w, "simulated artifact: %s\n", locator); err != nil {
		return &DownloadError{Locator: locator, Err: err}
	}
	return nil
}

func (s *SimulatedTransport) Health(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreachable {
		return fmt.Errorf("service unreachable")
	}
	return nil
}

// SetUnreachable makes status polls and health checks fail.
func (s *SimulatedTransport) SetUnreachable(v bool) {
	s.mu.Lock()
	s.unreachable = v
	s.mu.Unlock()
}

func (s *SimulatedTransport) statusAt(job *simJob, now time.Time) model.StatusResponse {
	status := model.StatusResponse{JobID: job.id}

	if job.cancelled {
		status.Status = model.JobStatusCancelled
		status.Error = "job cancelled"
		return status
	}

	stage := len(model.PipelineStages)
	if s.stageDuration > 0 {
		stage = int(now.Sub(job.started) / s.stageDuration)
	}

	if s.failStage >= 0 && stage >= s.failStage {
		status.Status = model.JobStatusError
		status.Error = s.failMessage
		if s.failStage < len(model.PipelineStages) {
			status.Progress = model.PipelineStages[s.failStage].Progress
		}
		return status
	}

	if stage >= len(model.PipelineStages) {
		status.Status = model.JobStatusCompleted
		status.Progress = 100
		status.CurrentStep = model.StepCompleted
		return status
	}

	status.Status = model.JobStatusProcessing
	status.Progress = model.PipelineStages[stage].Progress
	status.CurrentStep = model.PipelineStages[stage].Step
	return status
}

func synthesizeResult(job *simJob) *model.ProcessingResult {
	result := &model.ProcessingResult{
		JobID: job.id,
		OriginalFile: model.OriginalFile{
			Name:     job.name,
			Size:     job.size,
			Format:   strings.ToLower(filepath.Ext(job.name)),
			Duration: "3:45",
		},
		Analysis:  SimulatedAnalysis,
		CreatedAt: job.started,
	}
	for _, kind := range model.ValidOutputKinds {
		result.Outputs.Set(kind, fmt.Sprintf("/api/download/%s/%s", job.id, kind))
	}
	return result
}

// SimulatedAnalysis is the feature set reported for every simulated job.
var SimulatedAnalysis = model.Analysis{
	BPM:           120,
	Key:           "C Major",
	TimeSignature: "4/4",
	AvgPitch:      60,
	PitchRange:    30,
	KeyStability:  0.85,
	ModeMajor:     1,
	NoteDensity:   2.5,
	RhythmVariety: 2,
}
