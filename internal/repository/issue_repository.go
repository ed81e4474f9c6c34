package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// IssueRepository gives the engine read access to issues plus the SLA
// annotation write path. Everything else on the issue row belongs to the
// issue-tracking domain.
type IssueRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	ListForSweep(ctx context.Context) ([]domain.Issue, error)
	AnnotateSla(ctx context.Context, issueID string, status domain.SlaStatus, evaluatedAt time.Time) error
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `id, org_id, title, status, priority, assignee_id,
       created_at, last_response_at, resolved_at, closed_at, sla_status, sla_evaluated_at`

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	const query = `SELECT ` + issueColumns + ` FROM issues WHERE id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	issue, err := scanIssueRow(row)
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// ListForSweep returns every issue a sweep must look at: all active issues,
// plus resolved/closed issues whose SLA state has not been archived yet so the
// detector can retire them.
func (r *issueRepository) ListForSweep(ctx context.Context) ([]domain.Issue, error) {
	const query = `
        SELECT ` + issueColumns + `
        FROM issues i
        WHERE i.status IN ('OPEN', 'IN_PROGRESS')
           OR (i.status IN ('RESOLVED', 'CLOSED') AND EXISTS (
                SELECT 1 FROM sla_states s
                WHERE s.issue_id = i.id AND s.status <> 'ARCHIVED'))
        ORDER BY i.created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (r *issueRepository) AnnotateSla(ctx context.Context, issueID string, status domain.SlaStatus, evaluatedAt time.Time) error {
	const query = `UPDATE issues SET sla_status=$1, sla_evaluated_at=$2 WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, status, evaluatedAt, issueID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssueRow(row rowScanner) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.OrgID,
		&issue.Title,
		&issue.Status,
		&issue.Priority,
		&issue.AssigneeID,
		&issue.CreatedAt,
		&issue.LastResponseAt,
		&issue.ResolvedAt,
		&issue.ClosedAt,
		&issue.SlaStatus,
		&issue.SlaEvaluatedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}

func scanIssues(rows pgx.Rows) ([]domain.Issue, error) {
	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssueRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}
