package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// TokenRequest payload.
type TokenRequest struct {
	OperatorID  string `json:"operator_id"`
	OperatorKey string `json:"operator_key"`
}

// TokenResponse payload.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IssueSlaResponse reports the current SLA view of one issue.
type IssueSlaResponse struct {
	IssueID     string               `json:"issue_id"`
	IssueStatus domain.IssueStatus   `json:"issue_status"`
	Priority    domain.IssuePriority `json:"priority"`
	SlaStatus   domain.SlaStatus     `json:"sla_status"`
	Version     int64                `json:"version"`
	EvaluatedAt *time.Time           `json:"evaluated_at,omitempty"`
}

// SweepResponse reports the outcome of a manual sweep.
type SweepResponse struct {
	SweepTime   time.Time `json:"sweep_time"`
	Evaluated   int       `json:"evaluated"`
	Transitions int       `json:"transitions"`
	Enqueued    int       `json:"enqueued"`
	Archived    int       `json:"archived"`
	Superseded  int       `json:"superseded"`
}

// DeadLetterResponse is one dead-lettered escalation.
type DeadLetterResponse struct {
	JobID    string                `json:"job_id"`
	IssueID  string                `json:"issue_id"`
	OrgID    string                `json:"org_id"`
	Kind     domain.EscalationKind `json:"kind"`
	Reason   string                `json:"reason"`
	FailedAt time.Time             `json:"failed_at"`
}
