package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/response"
)

type substitutionPlanner interface {
	Days() []string
	Schedule(ctx context.Context, day string) (*dto.DayScheduleResponse, error)
	CreatePlan(ctx context.Context, req dto.CreatePlanRequest) (*dto.PlanResponse, error)
	GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error)
	ReshufflePlan(ctx context.Context, id string, req dto.ReshufflePlanRequest) (*dto.PlanResponse, error)
	OverrideSlot(ctx context.Context, id string, req dto.OverrideSlotRequest) (*dto.PlanResponse, error)
	DiscardPlan(ctx context.Context, id string) error
	ConfirmPlan(ctx context.Context, id string) (*dto.SettlementResponse, *appErrors.Error, error)
}

// SubstitutionHandler exposes day schedules and the plan workflow.
type SubstitutionHandler struct {
	service substitutionPlanner
}

// NewSubstitutionHandler constructs the handler.
func NewSubstitutionHandler(svc *service.SubstitutionService) *SubstitutionHandler {
	return &SubstitutionHandler{service: svc}
}

// Days godoc
// @Summary List selectable days
// @Tags Substitution
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /days [get]
func (h *SubstitutionHandler) Days(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Days())
}

// Schedule godoc
// @Summary Get the parsed staff schedule of a day
// @Tags Substitution
// @Produce json
// @Param day path string true "Day name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /days/{day}/schedule [get]
func (h *SubstitutionHandler) Schedule(c *gin.Context) {
	result, err := h.service.Schedule(c.Request.Context(), c.Param("day"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// CreatePlan godoc
// @Summary Build a substitution plan
// @Tags Substitution
// @Accept json
// @Produce json
// @Param payload body dto.CreatePlanRequest true "Day and absent teachers"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /plans [post]
func (h *SubstitutionHandler) CreatePlan(c *gin.Context) {
	var req dto.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan payload"))
		return
	}
	result, err := h.service.CreatePlan(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// GetPlan godoc
// @Summary Get an unconfirmed plan
// @Tags Substitution
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /plans/{id} [get]
func (h *SubstitutionHandler) GetPlan(c *gin.Context) {
	result, err := h.service.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Reshuffle godoc
// @Summary Recompute a plan with another seed
// @Description Without a seed the previous seed plus one is used. Manual overrides are dropped.
// @Tags Substitution
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body dto.ReshufflePlanRequest false "Optional seed"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/reshuffle [post]
func (h *SubstitutionHandler) Reshuffle(c *gin.Context) {
	var req dto.ReshufflePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reshuffle payload"))
		return
	}
	result, err := h.service.ReshufflePlan(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Override godoc
// @Summary Replace the substitute of one slot
// @Tags Substitution
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body dto.OverrideSlotRequest true "Slot and new substitute"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plans/{id}/slots [put]
func (h *SubstitutionHandler) Override(c *gin.Context) {
	var req dto.OverrideSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override payload"))
		return
	}
	result, err := h.service.OverrideSlot(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Confirm godoc
// @Summary Confirm a plan and settle the ledger
// @Description A failed ledger write-back is returned as a LEDGER_WRITE_FAILED warning with persisted=false.
// @Tags Substitution
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plans/{id}/confirm [post]
func (h *SubstitutionHandler) Confirm(c *gin.Context) {
	result, warning, err := h.service.ConfirmPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if warning != nil {
		_ = c.Error(warning)
		response.WithWarnings(c, http.StatusOK, result, warning)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Discard godoc
// @Summary Discard an unconfirmed plan
// @Tags Substitution
// @Param id path string true "Plan ID"
// @Success 204
// @Router /plans/{id} [delete]
func (h *SubstitutionHandler) Discard(c *gin.Context) {
	if err := h.service.DiscardPlan(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
