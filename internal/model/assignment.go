package model

import "time"

// CaseAssignment is an append-only record of a case being handed to a
// principal. Every principal ever named by one keeps read access.
type CaseAssignment struct {
	ID         int64     `db:"id" json:"id"`
	CaseID     int64     `db:"case_id" json:"case_id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	AssignedTo int64     `db:"assigned_to" json:"assigned_to"`
	Notes      string    `db:"notes" json:"notes"`
	CreatedAt  time.Time `db:"created_at" json:"timestamp"`
}
