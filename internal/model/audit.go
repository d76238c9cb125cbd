package model

import (
	"time"
)

// CaseAudit is an immutable per-field change record.
type CaseAudit struct {
	ID        int64     `json:"id" db:"id"`
	CaseID    int64     `json:"case_id" db:"case_id"`
	FieldName string    `json:"field_name" db:"field_name"`
	OldValue  string    `json:"old_value" db:"old_value"`
	NewValue  string    `json:"new_value" db:"new_value"`
	ChangedBy int64     `json:"changed_by" db:"changed_by"`
	CreatedAt time.Time `json:"timestamp" db:"created_at"`
}

// CaseDetail is a case together with its assignment history and audit trail.
type CaseDetail struct {
	Case        *Case             `json:"case"`
	Assignments []*CaseAssignment `json:"assignments"`
	AuditTrail  []*CaseAudit      `json:"audit_trail"`
}
