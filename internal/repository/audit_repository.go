package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// AuditRepository appends to the SLA audit trail. Rows are append-only.
type AuditRepository interface {
	Append(ctx context.Context, rec *domain.AuditRecord) error
	ListByIssue(ctx context.Context, issueID string, limit int) ([]domain.AuditRecord, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository instantiates repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, rec *domain.AuditRecord) error {
	const query = `
        INSERT INTO sla_audit_records (id, org_id, actor, area, action, issue_id, before_state, after_state, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.OrgID,
		rec.Actor,
		rec.Area,
		rec.Action,
		rec.IssueID,
		rec.Before,
		rec.After,
		rec.RecordedAt,
	)
	return err
}

func (r *auditRepository) ListByIssue(ctx context.Context, issueID string, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, org_id, actor, area, action, issue_id, before_state, after_state, recorded_at
        FROM sla_audit_records WHERE issue_id=$1
        ORDER BY recorded_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, issueID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.OrgID,
			&rec.Actor,
			&rec.Area,
			&rec.Action,
			&rec.IssueID,
			&rec.Before,
			&rec.After,
			&rec.RecordedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
