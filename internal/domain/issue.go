package domain

import "time"

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "OPEN"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusResolved   IssueStatus = "RESOLVED"
	IssueStatusClosed     IssueStatus = "CLOSED"
)

// IsActive reports whether the issue still counts against its SLA deadlines.
func (s IssueStatus) IsActive() bool {
	return s == IssueStatusOpen || s == IssueStatusInProgress
}

// IssuePriority enumerates SLA urgency.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "LOW"
	IssuePriorityMedium IssuePriority = "MEDIUM"
	IssuePriorityHigh   IssuePriority = "HIGH"
	IssuePriorityUrgent IssuePriority = "URGENT"
)

// Issue is the aggregate the SLA engine evaluates. The engine reads issue
// fields and writes only the SLA annotation pair; everything else is owned by
// the issue-tracking domain.
type Issue struct {
	ID             string
	OrgID          string
	Title          string
	Status         IssueStatus
	Priority       IssuePriority
	AssigneeID     *string
	CreatedAt      time.Time
	LastResponseAt *time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
	SlaStatus      *SlaStatus
	SlaEvaluatedAt *time.Time
}
