package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/scoreapp/score/internal/model"
	"github.com/scoreapp/score/internal/recommend"
	"github.com/scoreapp/score/pkg/response"
)

type RecommendHandler struct {
	service   *recommend.Service
	validator *validator.Validate
}

func NewRecommendHandler(svc *recommend.Service, v *validator.Validate) *RecommendHandler {
	return &RecommendHandler{
		service:   svc,
		validator: v,
	}
}

// Recommend handles POST /api/recommend
// @Summary      Recommend similar pieces
// @Description  Rank the reference library by similarity to a feature set
// @Tags         Recommend
// @Accept       json
// @Produce      json
// @Param        request body model.RecommendRequest true "Features and optional k"
// @Success      200 {object} model.RecommendResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/recommend [post]
func (h *RecommendHandler) Recommend(c *fiber.Ctx) error {
	var req model.RecommendRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	values := make(map[string]float64, len(req.Features))
	for name, v := range req.Features {
		if v == nil {
			return response.ValidationError(c, fmt.Sprintf("Feature %s is null", name), nil)
		}
		values[name] = *v
	}

	features, err := recommend.FeatureVectorFromMap(values)
	if err != nil {
		return response.ValidationError(c, err.Error(), map[string]interface{}{
			"features": model.FeatureNames,
		})
	}

	var recs []model.Recommendation
	if req.K != nil {
		recs, err = h.service.Recommend(features, *req.K)
	} else {
		recs, err = h.service.RecommendDefault(features)
	}
	if err != nil {
		if errors.Is(err, recommend.ErrInvalidInput) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.RecommendResponse{Recommendations: recs})
}
