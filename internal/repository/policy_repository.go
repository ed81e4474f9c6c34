package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// PolicyRepository loads per-organization SLA policies. A nil policy with a
// nil error means the organization has none configured; the resolver falls
// back to the system default in that case.
type PolicyRepository interface {
	GetByOrg(ctx context.Context, orgID string) (*domain.SlaPolicy, error)
}

type policyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository instantiates repository.
func NewPolicyRepository(pool *pgxpool.Pool) PolicyRepository {
	return &policyRepository{pool: pool}
}

func (r *policyRepository) GetByOrg(ctx context.Context, orgID string) (*domain.SlaPolicy, error) {
	const query = `
        SELECT priority, response_seconds, resolution_seconds
        FROM sla_policies WHERE org_id=$1`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	targets := make(map[domain.IssuePriority]domain.PolicyTarget)
	for rows.Next() {
		var priority domain.IssuePriority
		var responseSecs, resolutionSecs int64
		if err := rows.Scan(&priority, &responseSecs, &resolutionSecs); err != nil {
			return nil, err
		}
		targets[priority] = domain.PolicyTarget{
			Response:   time.Duration(responseSecs) * time.Second,
			Resolution: time.Duration(resolutionSecs) * time.Second,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}
	return &domain.SlaPolicy{OrgID: orgID, Targets: targets}, nil
}
