package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EscalationJobRepository persists durable job rows. The Redis queue carries
// only job IDs; this table is the source of truth for job state.
type EscalationJobRepository interface {
	// Create inserts a pending job unless a live job of the same kind
	// already exists for the issue. Returns false when the insert was
	// suppressed by the live-uniqueness constraint.
	Create(ctx context.Context, job *domain.EscalationJob) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.EscalationJob, error)
	MarkInFlight(ctx context.Context, id string) error
	MarkDelivered(ctx context.Context, id string) error
	MarkCancelled(ctx context.Context, id string) error
	MarkDeadLettered(ctx context.Context, id string, reason string) error
	UpdateAttempts(ctx context.Context, id string, attempts int, lastError string) error
	// CancelPendingForIssue cancels every live job for an issue and returns
	// the affected job IDs so the caller can drop them from the queue.
	CancelPendingForIssue(ctx context.Context, issueID string) ([]string, error)
	// ListStalePending returns IDs of pending jobs untouched since olderThan,
	// candidates for queue re-enqueue after a lost broker write.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

type escalationJobRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationJobRepository instantiates repository.
func NewEscalationJobRepository(pool *pgxpool.Pool) EscalationJobRepository {
	return &escalationJobRepository{pool: pool}
}

func (r *escalationJobRepository) Create(ctx context.Context, job *domain.EscalationJob) (bool, error) {
	const query = `
        INSERT INTO escalation_jobs (id, issue_id, org_id, kind, target_version, status, attempts, max_attempts, enqueued_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
        ON CONFLICT (issue_id, kind) WHERE status IN ('PENDING', 'IN_FLIGHT') DO NOTHING`
	now := time.Now().UTC()
	job.Status = domain.JobStatusPending
	job.EnqueuedAt = now
	job.UpdatedAt = now
	tag, err := r.pool.Exec(ctx, query,
		job.ID,
		job.IssueID,
		job.OrgID,
		job.Kind,
		job.TargetVersion,
		job.Status,
		job.Attempts,
		job.MaxAttempts,
		now,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *escalationJobRepository) GetByID(ctx context.Context, id string) (*domain.EscalationJob, error) {
	const query = `
        SELECT id, issue_id, org_id, kind, target_version, status, attempts, max_attempts, last_error, enqueued_at, updated_at
        FROM escalation_jobs WHERE id=$1`
	var job domain.EscalationJob
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.IssueID,
		&job.OrgID,
		&job.Kind,
		&job.TargetVersion,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&job.LastError,
		&job.EnqueuedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *escalationJobRepository) MarkInFlight(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.JobStatusInFlight)
}

func (r *escalationJobRepository) MarkDelivered(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.JobStatusDelivered)
}

func (r *escalationJobRepository) MarkCancelled(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.JobStatusCancelled)
}

func (r *escalationJobRepository) MarkDeadLettered(ctx context.Context, id string, reason string) error {
	const query = `
        UPDATE escalation_jobs SET status=$1, last_error=$2, updated_at=NOW() WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, domain.JobStatusDeadLettered, reason, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *escalationJobRepository) UpdateAttempts(ctx context.Context, id string, attempts int, lastError string) error {
	const query = `
        UPDATE escalation_jobs SET attempts=$1, last_error=$2, status=$3, updated_at=NOW() WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, attempts, lastError, domain.JobStatusPending, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *escalationJobRepository) CancelPendingForIssue(ctx context.Context, issueID string) ([]string, error) {
	const query = `
        UPDATE escalation_jobs SET status=$1, updated_at=NOW()
        WHERE issue_id=$2 AND status IN ('PENDING', 'IN_FLIGHT')
        RETURNING id`
	rows, err := r.pool.Query(ctx, query, domain.JobStatusCancelled, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *escalationJobRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id FROM escalation_jobs
        WHERE status='PENDING' AND updated_at < $1
        ORDER BY updated_at LIMIT $2`
	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *escalationJobRepository) setStatus(ctx context.Context, id string, status domain.EscalationJobStatus) error {
	const query = `UPDATE escalation_jobs SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ErrJobNotFound reports a queue entry whose durable row is missing.
var ErrJobNotFound = errors.New("escalation job not found")
