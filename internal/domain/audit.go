package domain

import "time"

// AuditArea scopes audit records to a subsystem.
const AuditAreaSla = "sla"

// SystemActor is recorded when the engine itself performs an action.
const SystemActor = "system:sla-engine"

// AuditRecord is an append-only trail entry for SLA side effects.
type AuditRecord struct {
	ID         string
	OrgID      string
	Actor      string
	Area       string
	Action     string
	IssueID    string
	Before     string
	After      string
	RecordedAt time.Time
}
