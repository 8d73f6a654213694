package model

import "time"

// Job is the server-side record of one submitted file.
type Job struct {
	ID          string                `json:"id"`
	Status      JobStatus             `json:"status"`
	Progress    int                   `json:"progress"`
	CurrentStep string                `json:"currentStep,omitempty"`
	Error       *string               `json:"error,omitempty"`
	FileName    string                `json:"fileName"`
	FilePath    string                `json:"filePath"`
	FileSize    int64                 `json:"fileSize"`
	Artifacts   map[OutputKind]string `json:"artifacts,omitempty"` // kind -> path relative to the output dir
	Result      *ProcessingResult     `json:"result,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	StartedAt   *time.Time            `json:"startedAt,omitempty"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
}

// UploadJob is the client-side view of a job owned by a job controller.
type UploadJob struct {
	JobID       string    `json:"jobId,omitempty"`
	FileName    string    `json:"fileName"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"currentStep,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// UploadResponse is returned by POST /api/upload
type UploadResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// StatusResponse is returned by GET /api/status/:jobId
type StatusResponse struct {
	JobID       string    `json:"jobId"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"currentStep,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// CancelResponse is returned by POST /api/cancel/:jobId
type CancelResponse struct {
	Message string `json:"message"`
}

// TranscribeJobPayload is the queued task payload for the processing pipeline
type TranscribeJobPayload struct {
	JobID string `json:"jobId"`
}

// HealthResponse is returned by GET /api/health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
