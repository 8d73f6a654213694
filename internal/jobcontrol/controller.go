package jobcontrol

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scoreapp/score/internal/client"
	"github.com/scoreapp/score/internal/model"
)

// State is the controller's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Active reports whether a job is still moving on its own.
func (s State) Active() bool {
	return s == StateUploading || s == StateProcessing
}

const (
	DefaultPollInterval  = 2 * time.Second
	DefaultCancelTimeout = 5 * time.Second
)

var (
	ErrNoResult      = errors.New("no completed result")
	ErrOutputMissing = errors.New("output not produced")
	ErrEmptyFile     = errors.New("file has no body")
)

// Snapshot is a consistent copy of the controller state. Job is nil when idle.
// Result is shared and must be treated as read-only.
type Snapshot struct {
	State  State
	Job    *model.UploadJob
	Result *model.ProcessingResult
}

// Controller drives one job at a time through upload, polling and result
// retrieval. Every asynchronous completion carries the generation it was
// started under and is dropped if a Submit or Reset happened since.
type Controller struct {
	transport     client.Transport
	log           *zap.Logger
	pollInterval  time.Duration
	cancelTimeout time.Duration

	mu      sync.Mutex
	gen     uint64
	state   State
	job     model.UploadJob
	result  *model.ProcessingResult
	cancel  context.CancelFunc
	changed chan struct{}
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

type Option func(*Controller)

func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithCancelTimeout bounds the best-effort remote cancel issued by Reset.
func WithCancelTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.cancelTimeout = d
		}
	}
}

func New(transport client.Transport, opts ...Option) *Controller {
	c := &Controller{
		transport:     transport,
		log:           zap.NewNop(),
		pollInterval:  DefaultPollInterval,
		cancelTimeout: DefaultCancelTimeout,
		state:         StateIdle,
		changed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit abandons any current job and starts uploading file. It returns as soon
// as the upload has been started.
func (c *Controller) Submit(file client.File) error {
	if file.Body == nil {
		return ErrEmptyFile
	}

	c.mu.Lock()
	c.abortLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	gen := c.gen
	c.state = StateUploading
	c.job = model.UploadJob{
		FileName: file.Name,
		Status:   model.JobStatusUploading,
	}
	c.result = nil
	c.notifyLocked()
	c.mu.Unlock()

	c.log.Info("upload started", zap.String("file", file.Name), zap.Int64("size", file.Size))

	go c.run(ctx, gen, file)
	return nil
}

// Reset discards the current job and returns to idle. In-flight requests and
// the poll loop are cancelled before Reset returns.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.abortLocked()
	c.state = StateIdle
	c.job = model.UploadJob{}
	c.result = nil
	c.notifyLocked()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for every state change, in order. fn runs with the
// controller lock held and must not call back into the controller.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Wait blocks until the controller is not working on a job (completed, error
// or idle) and returns that state.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	for {
		c.mu.Lock()
		snap := c.snapshotLocked()
		changed := c.changed
		c.mu.Unlock()

		if !snap.State.Active() {
			return snap, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Download writes the output of kind from the completed result into dir and
// returns the written path. A failed download keeps any earlier copy.
// Transport failures are returned as is so callers can match
// *client.DownloadError.
func (c *Controller) Download(ctx context.Context, kind model.OutputKind, dir string) (string, error) {
	c.mu.Lock()
	result := c.result
	c.mu.Unlock()

	if result == nil {
		return "", ErrNoResult
	}
	locator, ok := result.Outputs.Locator(kind)
	if !ok {
		return "", fmt.Errorf("%s: %w", kind, ErrOutputMissing)
	}

	path := client.OutputPath(dir, result.JobID, kind)
	if err := client.DownloadFile(ctx, c.transport, locator, path); err != nil {
		return "", err
	}
	return path, nil
}

func (c *Controller) run(ctx context.Context, gen uint64, file client.File) {
	resp, err := c.transport.Upload(ctx, file, func(fraction float64) {
		c.uploadProgress(gen, fraction)
	})
	if err != nil {
		c.fail(gen, err.Error())
		return
	}

	if !c.startProcessing(gen, resp.JobID) {
		return
	}
	c.poll(ctx, gen, resp.JobID)
}

// poll runs until the job reaches a terminal status or ctx is cancelled.
// Requests are sequential so at most one is ever in flight.
func (c *Controller) poll(ctx context.Context, gen uint64, jobID string) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := c.transport.PollStatus(ctx, jobID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.fail(gen, fmt.Sprintf("status endpoint unreachable: %v", err))
			return
		}

		switch status.Status {
		case model.JobStatusCompleted:
			ticker.Stop()
			c.complete(ctx, gen, jobID)
			return
		case model.JobStatusError, model.JobStatusCancelled:
			msg := status.Error
			if msg == "" {
				msg = "job " + string(status.Status)
			}
			c.fail(gen, msg)
			return
		default:
			c.processingProgress(gen, status)
		}
	}
}

func (c *Controller) complete(ctx context.Context, gen uint64, jobID string) {
	result, err := c.transport.FetchResult(ctx, jobID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.fail(gen, err.Error())
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.releaseLocked()
	c.state = StateCompleted
	c.job.Status = model.JobStatusCompleted
	c.job.Progress = 100
	c.job.CurrentStep = model.StepCompleted
	c.result = result
	c.notifyLocked()

	c.log.Info("job completed", zap.String("job_id", jobID))
}

func (c *Controller) uploadProgress(gen uint64, fraction float64) {
	pct := int(math.Round(fraction * 100))
	pct = max(0, min(100, pct))

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateUploading || pct <= c.job.Progress {
		return
	}
	c.job.Progress = pct
	c.notifyLocked()
}

func (c *Controller) startProcessing(gen uint64, jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateUploading {
		return false
	}
	c.state = StateProcessing
	c.job.JobID = jobID
	c.job.Status = model.JobStatusProcessing
	c.job.Progress = 0
	c.notifyLocked()

	c.log.Info("upload finished", zap.String("job_id", jobID))
	return true
}

func (c *Controller) processingProgress(gen uint64, status *model.StatusResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateProcessing {
		return
	}

	changed := false
	if status.Progress > c.job.Progress {
		c.job.Progress = min(status.Progress, 100)
		changed = true
	}
	if status.CurrentStep != "" && status.CurrentStep != c.job.CurrentStep {
		c.job.CurrentStep = status.CurrentStep
		changed = true
	}
	if changed {
		c.notifyLocked()
	}
}

func (c *Controller) fail(gen uint64, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.state.Active() {
		return
	}
	c.releaseLocked()
	c.state = StateError
	c.job.Status = model.JobStatusError
	c.job.Error = msg
	c.notifyLocked()

	c.log.Warn("job failed", zap.String("job_id", c.job.JobID), zap.String("error", msg))
}

// abortLocked invalidates the current generation and stops its goroutines.
// A job the service is still working on is cancelled remotely in the
// background.
func (c *Controller) abortLocked() {
	c.gen++
	c.releaseLocked()

	if c.state.Active() && c.job.JobID != "" {
		go c.cancelRemote(c.job.JobID)
	}
}

func (c *Controller) releaseLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) cancelRemote(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cancelTimeout)
	defer cancel()

	if err := c.transport.Cancel(ctx, jobID); err != nil {
		c.log.Debug("remote cancel failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state, Result: c.result}
	if c.state != StateIdle {
		job := c.job
		snap.Job = &job
	}
	return snap
}

func (c *Controller) notifyLocked() {
	snap := c.snapshotLocked()
	for _, s := range c.subs {
		s.fn(snap)
	}
	close(c.changed)
	c.changed = make(chan struct{})
}
