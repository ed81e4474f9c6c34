package domain

import "time"

// EscalationKind identifies the breach class a job escalates.
type EscalationKind string

const (
	EscalationResponseWarning   EscalationKind = "RESPONSE_WARNING"
	EscalationResponseBreach    EscalationKind = "RESPONSE_BREACH"
	EscalationResolutionWarning EscalationKind = "RESOLUTION_WARNING"
	EscalationResolutionBreach  EscalationKind = "RESOLUTION_BREACH"
)

// EscalationJobStatus enumerates job lifecycle states persisted in Postgres.
type EscalationJobStatus string

const (
	JobStatusPending      EscalationJobStatus = "PENDING"
	JobStatusInFlight     EscalationJobStatus = "IN_FLIGHT"
	JobStatusDelivered    EscalationJobStatus = "DELIVERED"
	JobStatusCancelled    EscalationJobStatus = "CANCELLED"
	JobStatusDeadLettered EscalationJobStatus = "DEAD_LETTERED"
)

// EscalationJob is a durable notification task produced by the breach
// detector. TargetVersion pins the SlaState version the job was derived from;
// the dispatcher drops the job as superseded when the stored version has
// moved past it.
type EscalationJob struct {
	ID            string
	IssueID       string
	OrgID         string
	Kind          EscalationKind
	TargetVersion int64
	Status        EscalationJobStatus
	Attempts      int
	MaxAttempts   int
	LastError     *string
	EnqueuedAt    time.Time
	UpdatedAt     time.Time
}

// DeadLetterRecord captures a job that exhausted its retries and needs
// operator attention.
type DeadLetterRecord struct {
	JobID    string
	IssueID  string
	OrgID    string
	Kind     EscalationKind
	Reason   string
	FailedAt time.Time
}
