package client

import (
	"context"
	"io"

	"github.com/scoreapp/score/internal/model"
)

// Transport is everything a job controller needs from the processing service.
type Transport interface {
	// Upload streams file to the service and returns the assigned job id.
	// onProgress receives the uploaded fraction in [0, 1] and is called with 1
	// once the body has been fully sent. Failures are *UploadError.
	Upload(ctx context.Context, file File, onProgress ProgressFunc) (*model.UploadResponse, error)

	// PollStatus fetches the current status of a job. Failures are *TransportError.
	PollStatus(ctx context.Context, jobID string) (*model.StatusResponse, error)

	// FetchResult fetches the payload of a completed job. It fails with an error
	// matching ErrNotReady when the job has not completed.
	FetchResult(ctx context.Context, jobID string) (*model.ProcessingResult, error)

	// Cancel asks the service to stop a job. Best effort.
	Cancel(ctx context.Context, jobID string) error

	// Download copies the bytes behind locator into w. Failures are *DownloadError.
	Download(ctx context.Context, locator string, w io.Writer) error

	// Health returns nil when the service is reachable.
	Health(ctx context.Context) error
}

// File is an artifact to upload
type File struct {
	Name string
	Size int64
	Body io.Reader
}

// ProgressFunc receives upload progress as a fraction in [0, 1]
type ProgressFunc func(fraction float64)
