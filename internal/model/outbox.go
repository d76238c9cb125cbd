package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Case event types
const (
	EventCaseCreated       = "case.created"
	EventCaseAssigned      = "case.assigned"
	EventCaseStatusChanged = "case.status_changed"
	EventCaseCompleted     = "case.completed"
	EventCaseUpdated       = "case.updated"
	EventCaseDeleted       = "case.deleted"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	HospitalID   int64           `db:"hospital_id" json:"hospital_id"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
}

// CaseEvent is the payload published for every case outbox event.
type CaseEvent struct {
	CaseID     int64      `json:"case_id"`
	HospitalID int64      `json:"hospital_id"`
	ActorID    int64      `json:"actor_id"`
	Status     CaseStatus `json:"status"`
	Priority   string     `json:"priority"`
	AssignedTo int64      `json:"assigned_to,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// NewOutboxEvent builds a pending outbox row for a case event.
func NewOutboxEvent(eventType string, ev CaseEvent, now time.Time) (*OutboxEvent, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		HospitalID: ev.HospitalID,
		Payload:    payload,
		Status:     OutboxStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
