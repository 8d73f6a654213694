package client

import (
	"errors"
	"fmt"
)

// ErrNotReady is matched by result requests made before a job has completed.
var ErrNotReady = errors.New("job not completed")

// ErrJobNotFound is matched by requests for job ids the service does not know.
var ErrJobNotFound = errors.New("job not found")

// UploadError is a failure before a job exists.
type UploadError struct {
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *UploadError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
	return "upload failed"
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// TransportError is a failed request against an existing job.
type TransportError struct {
	Op         string
	JobID      string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.JobID, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.JobID, msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DownloadError is a failed artifact retrieval. Callers are expected to recover
// from it, for example by writing a local stand-in.
type DownloadError struct {
	Locator    string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d", e.Locator, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.Locator, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
