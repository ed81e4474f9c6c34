package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// SlaStateRepository is the idempotency/state tracker. CompareAndSet is the
// only mutation path for SlaState rows; both the breach detector and the
// dispatcher rely on its semantics to avoid lost updates when sweeps and
// dispatch operations race on the same issue.
type SlaStateRepository interface {
	Get(ctx context.Context, issueID string) (*domain.SlaState, error)
	// CompareAndSet writes next when the stored version equals
	// expectedVersion. expectedVersion 0 means "no row yet" and takes the
	// insert path. Returns false, without error, when the row has moved on.
	CompareAndSet(ctx context.Context, issueID string, expectedVersion int64, next domain.SlaState) (bool, error)
}

type slaStateRepository struct {
	pool *pgxpool.Pool
}

// NewSlaStateRepository instantiates repository.
func NewSlaStateRepository(pool *pgxpool.Pool) SlaStateRepository {
	return &slaStateRepository{pool: pool}
}

func (r *slaStateRepository) Get(ctx context.Context, issueID string) (*domain.SlaState, error) {
	const query = `SELECT issue_id, status, version, evaluated_at FROM sla_states WHERE issue_id=$1`
	var state domain.SlaState
	err := r.pool.QueryRow(ctx, query, issueID).Scan(
		&state.IssueID,
		&state.Status,
		&state.Version,
		&state.EvaluatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *slaStateRepository) CompareAndSet(ctx context.Context, issueID string, expectedVersion int64, next domain.SlaState) (bool, error) {
	if expectedVersion == 0 {
		const insert = `
            INSERT INTO sla_states (issue_id, status, version, evaluated_at)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (issue_id) DO NOTHING`
		tag, err := r.pool.Exec(ctx, insert, issueID, next.Status, next.Version, next.EvaluatedAt)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	}

	const update = `
        UPDATE sla_states SET status=$1, version=$2, evaluated_at=$3
        WHERE issue_id=$4 AND version=$5`
	tag, err := r.pool.Exec(ctx, update, next.Status, next.Version, next.EvaluatedAt, issueID, expectedVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
