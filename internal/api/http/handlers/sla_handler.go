package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// SlaHandler serves read access to per-issue SLA status.
type SlaHandler struct {
	issues repository.IssueRepository
	states repository.SlaStateRepository
}

// NewSlaHandler constructs handler.
func NewSlaHandler(issues repository.IssueRepository, states repository.SlaStateRepository) *SlaHandler {
	return &SlaHandler{issues: issues, states: states}
}

// GetIssueSla GET /issues/:id/sla.
func (h *SlaHandler) GetIssueSla(c *fiber.Ctx) error {
	issueID := c.Params("id")
	if issueID == "" {
		return apperrors.NewValidationError("issue id required", nil)
	}

	issue, err := h.issues.GetByID(c.Context(), issueID)
	if err != nil {
		return apperrors.MapError(err)
	}

	resp := dto.IssueSlaResponse{
		IssueID:     issue.ID,
		IssueStatus: issue.Status,
		Priority:    issue.Priority,
	}

	state, err := h.states.Get(c.Context(), issueID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if state != nil {
		resp.SlaStatus = state.Status
		resp.Version = state.Version
		evaluatedAt := state.EvaluatedAt
		resp.EvaluatedAt = &evaluatedAt
	}

	return c.JSON(resp)
}
