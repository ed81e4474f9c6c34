package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// DeadLetterRepository records jobs that exhausted their retries.
type DeadLetterRepository interface {
	Insert(ctx context.Context, rec *domain.DeadLetterRecord) error
	List(ctx context.Context, limit int) ([]domain.DeadLetterRecord, error)
}

type deadLetterRepository struct {
	pool *pgxpool.Pool
}

// NewDeadLetterRepository instantiates repository.
func NewDeadLetterRepository(pool *pgxpool.Pool) DeadLetterRepository {
	return &deadLetterRepository{pool: pool}
}

func (r *deadLetterRepository) Insert(ctx context.Context, rec *domain.DeadLetterRecord) error {
	const query = `
        INSERT INTO sla_dead_letters (job_id, issue_id, org_id, kind, reason, failed_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (job_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query,
		rec.JobID,
		rec.IssueID,
		rec.OrgID,
		rec.Kind,
		rec.Reason,
		rec.FailedAt,
	)
	return err
}

func (r *deadLetterRepository) List(ctx context.Context, limit int) ([]domain.DeadLetterRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT job_id, issue_id, org_id, kind, reason, failed_at
        FROM sla_dead_letters ORDER BY failed_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DeadLetterRecord
	for rows.Next() {
		var rec domain.DeadLetterRecord
		if err := rows.Scan(&rec.JobID, &rec.IssueID, &rec.OrgID, &rec.Kind, &rec.Reason, &rec.FailedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
