package service

import (
	"errors"

	"github.com/scoreapp/score/internal/store"
)

var (
	ErrJobNotFound       = store.ErrNotFound
	ErrJobNotCompleted   = errors.New("job not completed")
	ErrJobFinished       = errors.New("job already completed or failed")
	ErrArtifactNotFound  = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file too large")

	// ErrInterrupted is recorded on a job whose pipeline was stopped by
	// shutdown rather than by the API.
	ErrInterrupted = errors.New("processing interrupted")

	errJobCancelled = errors.New("job cancelled")
)
