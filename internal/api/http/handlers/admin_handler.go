package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/sla"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// AdminHandler exposes the permission-gated operational surface: manual
// sweeps and dead-letter inspection.
type AdminHandler struct {
	scheduler   *sla.Scheduler
	deadLetters repository.DeadLetterRepository
	logger      *zap.Logger
}

// NewAdminHandler constructs handler.
func NewAdminHandler(scheduler *sla.Scheduler, deadLetters repository.DeadLetterRepository, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{scheduler: scheduler, deadLetters: deadLetters, logger: logger}
}

// TriggerSweep POST /admin/sla/sweep.
func (h *AdminHandler) TriggerSweep(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	h.logger.Info("manual sweep requested", zap.String("operator", principal.SubjectID))

	report, err := h.scheduler.RunNow(c.Context())
	if err != nil {
		return apperrors.NewDomainError("SWEEP_DEGRADED", err.Error(), fiber.StatusBadGateway, fiber.Map{
			"evaluated": report.Evaluated,
			"enqueued":  report.Enqueued,
		})
	}

	return c.JSON(dto.SweepResponse{
		SweepTime:   report.SweepTime,
		Evaluated:   report.Evaluated,
		Transitions: report.Transitions,
		Enqueued:    report.Enqueued,
		Archived:    report.Archived,
		Superseded:  report.Superseded,
	})
}

// ListDeadLetters GET /admin/sla/dead-letters.
func (h *AdminHandler) ListDeadLetters(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	records, err := h.deadLetters.List(c.Context(), limit)
	if err != nil {
		return apperrors.MapError(err)
	}

	out := make([]dto.DeadLetterResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, dto.DeadLetterResponse{
			JobID:    rec.JobID,
			IssueID:  rec.IssueID,
			OrgID:    rec.OrgID,
			Kind:     rec.Kind,
			Reason:   rec.Reason,
			FailedAt: rec.FailedAt,
		})
	}
	return c.JSON(fiber.Map{"dead_letters": out})
}
