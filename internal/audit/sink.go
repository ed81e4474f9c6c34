package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// Sink is the fire-and-forget audit writer. A failed audit write is logged
// and dropped; it never propagates into the caller's critical path.
type Sink struct {
	records repository.AuditRepository
	logger  *zap.Logger
}

// NewSink constructs the sink.
func NewSink(records repository.AuditRepository, logger *zap.Logger) *Sink {
	return &Sink{records: records, logger: logger}
}

// Record appends an audit record, filling in ID, area, and timestamp when
// absent.
func (s *Sink) Record(ctx context.Context, rec *domain.AuditRecord) {
	if s == nil || s.records == nil || rec == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Area == "" {
		rec.Area = domain.AuditAreaSla
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	if err := s.records.Append(ctx, rec); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", rec.Action),
			zap.String("issue_id", rec.IssueID),
			zap.Error(err))
	}
}
