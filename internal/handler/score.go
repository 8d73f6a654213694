package handler

import (
	"errors"
	"maps"
	"path/filepath"
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/scoreapp/score/internal/model"
	"github.com/scoreapp/score/internal/service"
	"github.com/scoreapp/score/pkg/response"
)

type ScoreHandler struct {
	service *service.ScoreService
}

func NewScoreHandler(svc *service.ScoreService) *ScoreHandler {
	return &ScoreHandler{service: svc}
}

// Upload handles POST /api/upload
// @Summary      Upload a recording
// @Description  Accept an audio or video file and queue it for transcription
// @Tags         Jobs
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Recording (.mp3, .wav, .flac, .mp4, .mov)"
// @Success      200 {object} model.UploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      413 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload [post]
func (h *ScoreHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.Accept(c.Context(), file.Filename, file.Size, f)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFormat):
			return response.ValidationError(c, err.Error(), map[string]interface{}{
				"allowed": slices.Sorted(maps.Keys(model.AllowedExtensions)),
			})
		case errors.Is(err, service.ErrFileTooLarge):
			return response.FileTooLarge(c, h.service.MaxUploadBytes())
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Status handles GET /api/status/:jobId
// @Summary      Get job status
// @Description  Get the current status, progress and step of a job
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.StatusResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/status/{jobId} [get]
func (h *ScoreHandler) Status(c *fiber.Ctx) error {
	result, err := h.service.GetStatus(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/result/:jobId
// @Summary      Get job result
// @Description  Get the analysis and output locators of a completed job
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ProcessingResult
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/result/{jobId} [get]
func (h *ScoreHandler) Result(c *fiber.Ctx) error {
	result, err := h.service.GetResult(c.Context(), c.Params("jobId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrJobNotCompleted):
			return response.NotReady(c, "Job not completed yet")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/cancel/:jobId
// @Summary      Cancel a job
// @Description  Stop a queued or processing job at its next stage boundary
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.CancelResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/cancel/{jobId} [post]
func (h *ScoreHandler) Cancel(c *fiber.Ctx) error {
	err := h.service.Cancel(c.Context(), c.Params("jobId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrJobFinished):
			return response.JobFinished(c, "Job already completed or failed, cannot cancel")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.CancelResponse{Message: "Job cancelled"})
}

// Download handles GET /api/download/:jobId/:kind
// @Summary      Download an output
// @Description  Download one artifact of a completed job
// @Tags         Jobs
// @Produce      octet-stream
// @Param        jobId path string true "Job ID"
// @Param        kind  path string true "Output kind" Enums(midi, musicxml, lilypond, pdf, vocals, drums, bass, other)
// @Success      200 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/download/{jobId}/{kind} [get]
func (h *ScoreHandler) Download(c *fiber.Ctx) error {
	kind, ok := model.ParseOutputKind(c.Params("kind"))
	if !ok {
		return response.ValidationError(c, "Unknown file type", map[string]interface{}{
			"allowed": model.ValidOutputKinds,
		})
	}

	path, err := h.service.ArtifactPath(c.Context(), c.Params("jobId"), kind)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrJobNotCompleted):
			return response.NotReady(c, "Job not completed yet")
		case errors.Is(err, service.ErrArtifactNotFound):
			return response.NotFound(c, "File not found")
		}
		return response.ServiceError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Download(path, filepath.Base(path))
}
