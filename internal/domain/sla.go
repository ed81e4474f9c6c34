package domain

import "time"

// SlaStatus is the last-computed SLA classification for an issue.
type SlaStatus string

const (
	SlaStatusOnTrack            SlaStatus = "ON_TRACK"
	SlaStatusAtRisk             SlaStatus = "AT_RISK"
	SlaStatusBreachedResponse   SlaStatus = "BREACHED_RESPONSE"
	SlaStatusBreachedResolution SlaStatus = "BREACHED_RESOLUTION"
	SlaStatusArchived           SlaStatus = "ARCHIVED"
)

// PolicyTarget holds the deadline durations for one priority level, anchored
// at issue creation.
type PolicyTarget struct {
	Response   time.Duration
	Resolution time.Duration
}

// SlaPolicy maps priorities to deadline targets for one organization.
// Policies are immutable once loaded for an evaluation cycle.
type SlaPolicy struct {
	OrgID   string
	Targets map[IssuePriority]PolicyTarget
}

// Target returns the configured target for a priority, if present.
func (p *SlaPolicy) Target(priority IssuePriority) (PolicyTarget, bool) {
	if p == nil || p.Targets == nil {
		return PolicyTarget{}, false
	}
	t, ok := p.Targets[priority]
	return t, ok
}

// SlaState records the last evaluation outcome per issue. Version advances
// monotonically on every transition and is the idempotency token checked by
// the dispatcher before any side effect.
type SlaState struct {
	IssueID     string
	Status      SlaStatus
	Version     int64
	EvaluatedAt time.Time
}
