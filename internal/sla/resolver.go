package sla

import (
	"context"
	"fmt"
	"sync"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// PolicyResolver computes the applicable deadline target for an issue. An
// organization without a configured policy gets the system default so
// evaluation never blocks on missing configuration. Lookups are cached per
// sweep; the detector resets the cache at sweep start.
type PolicyResolver struct {
	policies repository.PolicyRepository
	fallback domain.PolicyTarget

	mu    sync.Mutex
	cache map[string]*domain.SlaPolicy
}

// NewPolicyResolver constructs a resolver with the given default target.
func NewPolicyResolver(policies repository.PolicyRepository, fallback domain.PolicyTarget) *PolicyResolver {
	return &PolicyResolver{
		policies: policies,
		fallback: fallback,
		cache:    make(map[string]*domain.SlaPolicy),
	}
}

// Resolve returns the deadline target for the organization and priority.
func (r *PolicyResolver) Resolve(ctx context.Context, orgID string, priority domain.IssuePriority) (domain.PolicyTarget, error) {
	policy, err := r.lookup(ctx, orgID)
	if err != nil {
		return domain.PolicyTarget{}, fmt.Errorf("resolve policy for org %s: %w", orgID, err)
	}
	if target, ok := policy.Target(priority); ok {
		return target, nil
	}
	return r.fallback, nil
}

// ResetCache drops cached policies so the next sweep sees fresh
// configuration. Policies stay immutable within one sweep.
func (r *PolicyResolver) ResetCache() {
	r.mu.Lock()
	r.cache = make(map[string]*domain.SlaPolicy)
	r.mu.Unlock()
}

func (r *PolicyResolver) lookup(ctx context.Context, orgID string) (*domain.SlaPolicy, error) {
	r.mu.Lock()
	policy, ok := r.cache[orgID]
	r.mu.Unlock()
	if ok {
		return policy, nil
	}

	policy, err := r.policies.GetByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[orgID] = policy
	r.mu.Unlock()
	return policy, nil
}
