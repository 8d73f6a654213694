package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scoreapp/score/internal/config"
	"github.com/scoreapp/score/internal/model"
	"github.com/scoreapp/score/internal/store"
)

// ScoreService handles the job lifecycle behind the HTTP API
type ScoreService struct {
	store      store.JobStore
	dispatcher Dispatcher
	uploadDir  string
	outputDir  string
	maxUpload  int64
	log        *zap.Logger
}

func NewScoreService(st store.JobStore, dispatcher Dispatcher, cfg *config.StorageConfig, log *zap.Logger) *ScoreService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScoreService{
		store:      st,
		dispatcher: dispatcher,
		uploadDir:  cfg.UploadDir,
		outputDir:  cfg.OutputDir,
		maxUpload:  int64(cfg.MaxUploadMB) << 20,
		log:        log,
	}
}

// MaxUploadBytes is the largest accepted upload.
func (s *ScoreService) MaxUploadBytes() int64 {
	return s.maxUpload
}

// Accept stores an uploaded file, records a queued job and dispatches it.
func (s *ScoreService) Accept(ctx context.Context, fileName string, size int64, body io.Reader) (*model.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !model.AllowedExtensions[ext] {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, ext)
	}
	if s.maxUpload > 0 && size > s.maxUpload {
		return nil, ErrFileTooLarge
	}

	jobID := uuid.New().String()
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(s.uploadDir, jobID+ext)

	written, err := s.saveUpload(path, body)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	job := &model.Job{
		ID:        jobID,
		Status:    model.JobStatusQueued,
		FileName:  fileName,
		FilePath:  path,
		FileSize:  written,
		CreatedAt: time.Now(),
	}
	if err := s.store.Save(ctx, job); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, jobID); err != nil {
		msg := err.Error()
		s.store.Update(ctx, jobID, func(j *model.Job) error {
			j.Status = model.JobStatusError
			j.Error = &msg
			return nil
		})
		return nil, fmt.Errorf("failed to dispatch job: %w", err)
	}

	s.log.Info("job accepted",
		zap.String("job_id", jobID),
		zap.String("file", fileName),
		zap.Int64("size", written),
	)

	return &model.UploadResponse{
		Success: true,
		JobID:   jobID,
		Message: "File uploaded, processing started",
	}, nil
}

func (s *ScoreService) saveUpload(path string, body io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to save file: %w", err)
	}

	src := body
	if s.maxUpload > 0 {
		src = io.LimitReader(body, s.maxUpload+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to save file: %w", err)
	}
	if s.maxUpload > 0 && n > s.maxUpload {
		return 0, ErrFileTooLarge
	}
	return n, nil
}

// GetStatus returns the current status of a job
func (s *ScoreService) GetStatus(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	status := &model.StatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
	}
	if job.Error != nil {
		status.Error = *job.Error
	}
	return status, nil
}

// GetResult returns the result of a completed job
func (s *ScoreService) GetResult(ctx context.Context, jobID string) (*model.ProcessingResult, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted || job.Result == nil {
		return nil, ErrJobNotCompleted
	}
	return job.Result, nil
}

// Cancel marks a job cancelled. The pipeline stops at its next stage boundary.
func (s *ScoreService) Cancel(ctx context.Context, jobID string) error {
	_, err := s.store.Update(ctx, jobID, func(job *model.Job) error {
		if job.Status == model.JobStatusCompleted || job.Status == model.JobStatusError {
			return ErrJobFinished
		}
		msg := errJobCancelled.Error()
		now := time.Now()
		job.Status = model.JobStatusCancelled
		job.Error = &msg
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("job cancelled", zap.String("job_id", jobID))
	return nil
}

// ArtifactPath returns the local file behind an output of a completed job.
func (s *ScoreService) ArtifactPath(ctx context.Context, jobID string, kind model.OutputKind) (string, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != model.JobStatusCompleted {
		return "", ErrJobNotCompleted
	}

	rel, ok := job.Artifacts[kind]
	if !ok || rel == "" {
		return "", ErrArtifactNotFound
	}
	path := filepath.Join(s.outputDir, filepath.FromSlash(rel))
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrArtifactNotFound
		}
		return "", err
	}
	return path, nil
}
