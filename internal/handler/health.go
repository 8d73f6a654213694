package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/scoreapp/score/internal/model"
)

// Health handles GET /api/health
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200 {object} model.HealthResponse
// @Router       /api/health [get]
func Health(c *fiber.Ctx) error {
	return c.JSON(model.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
