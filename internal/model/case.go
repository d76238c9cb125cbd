package model

import (
	"strconv"
	"time"
)

// CaseStatus is the value of a role track or of the derived global status.
type CaseStatus string

const (
	CaseStatusDraft      CaseStatus = "draft"
	CaseStatusAssigned   CaseStatus = "assigned"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusCompleted  CaseStatus = "completed"
	CaseStatusCancelled  CaseStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusDraft, CaseStatusAssigned, CaseStatusInProgress, CaseStatusCompleted, CaseStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s CaseStatus) Terminal() bool {
	return s == CaseStatusCompleted || s == CaseStatusCancelled
}

// Case priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Tracked case fields; every change to one of these is audited.
const (
	FieldStatus           = "status"
	FieldTechnicianStatus = "technician_status"
	FieldScientistStatus  = "scientist_status"
	FieldDoctorStatus     = "doctor_status"
	FieldPriority         = "priority"
	FieldPatientID        = "patient_id"
	FieldCurrentUserID    = "current_user_id"
	FieldDeletedAt        = "deleted_at"
)

// Case is a unit of clinical work inside one hospital. HospitalID never
// changes after creation.
type Case struct {
	Base
	HospitalID       int64      `db:"hospital_id" json:"hospital_id"`
	PatientID        int64      `db:"patient_id" json:"patient_id"`
	CurrentUserID    int64      `db:"current_user_id" json:"current_user_id"`
	CreatedBy        int64      `db:"created_by" json:"created_by"`
	Status           CaseStatus `db:"status" json:"status"`
	TechnicianStatus CaseStatus `db:"technician_status" json:"technician_status"`
	ScientistStatus  CaseStatus `db:"scientist_status" json:"scientist_status"`
	DoctorStatus     CaseStatus `db:"doctor_status" json:"doctor_status"`
	Priority         string     `db:"priority" json:"priority"`
	Notes            string     `db:"notes" json:"notes"`
}

// TrackStatus returns the status held in the given role track.
func (c *Case) TrackStatus(t Track) CaseStatus {
	switch t {
	case TrackTechnician:
		return c.TechnicianStatus
	case TrackScientist:
		return c.ScientistStatus
	case TrackDoctor:
		return c.DoctorStatus
	}
	return ""
}

// SetTrackStatus writes status into the given role track.
func (c *Case) SetTrackStatus(t Track, s CaseStatus) {
	switch t {
	case TrackTechnician:
		c.TechnicianStatus = s
	case TrackScientist:
		c.ScientistStatus = s
	case TrackDoctor:
		c.DoctorStatus = s
	}
}

// StatusPolicy derives the global status from the three role tracks.
type StatusPolicy func(technician, scientist, doctor CaseStatus) CaseStatus

// DeriveGlobalStatus is the default StatusPolicy. Cancelled tracks are
// ignored unless every track is cancelled; otherwise the case is completed
// once every live track is completed, in progress while any live track is
// being worked or some are already done, assigned while work is waiting
// and draft before anyone has engaged.
func DeriveGlobalStatus(technician, scientist, doctor CaseStatus) CaseStatus {
	live := make([]CaseStatus, 0, 3)
	for _, s := range []CaseStatus{technician, scientist, doctor} {
		if s != CaseStatusCancelled {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		return CaseStatusCancelled
	}

	var completed, inProgress, assigned int
	for _, s := range live {
		switch s {
		case CaseStatusCompleted:
			completed++
		case CaseStatusInProgress:
			inProgress++
		case CaseStatusAssigned:
			assigned++
		}
	}

	switch {
	case completed == len(live):
		return CaseStatusCompleted
	case inProgress > 0 || completed > 0:
		return CaseStatusInProgress
	case assigned > 0:
		return CaseStatusAssigned
	}
	return CaseStatusDraft
}

// Recompute sets the global status from the role tracks using policy.
func (c *Case) Recompute(policy StatusPolicy) {
	if policy == nil {
		policy = DeriveGlobalStatus
	}
	c.Status = policy(c.TechnicianStatus, c.ScientistStatus, c.DoctorStatus)
}

func (c *Case) trackedFields() map[string]string {
	return map[string]string{
		FieldStatus:           string(c.Status),
		FieldTechnicianStatus: string(c.TechnicianStatus),
		FieldScientistStatus:  string(c.ScientistStatus),
		FieldDoctorStatus:     string(c.DoctorStatus),
		FieldPriority:         c.Priority,
		FieldPatientID:        strconv.FormatInt(c.PatientID, 10),
		FieldCurrentUserID:    strconv.FormatInt(c.CurrentUserID, 10),
		FieldDeletedAt:        formatTime(c.DeletedAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// trackedFieldOrder keeps audit rows in a stable order.
var trackedFieldOrder = []string{
	FieldTechnicianStatus,
	FieldScientistStatus,
	FieldDoctorStatus,
	FieldStatus,
	FieldPriority,
	FieldPatientID,
	FieldCurrentUserID,
	FieldDeletedAt,
}

// DiffCase returns one audit entry per tracked field that differs between
// before and after.
func DiffCase(before, after *Case, changedBy int64, at time.Time) []CaseAudit {
	old, cur := before.trackedFields(), after.trackedFields()
	var out []CaseAudit
	for _, f := range trackedFieldOrder {
		if old[f] == cur[f] {
			continue
		}
		out = append(out, CaseAudit{
			CaseID:    after.ID,
			FieldName: f,
			OldValue:  old[f],
			NewValue:  cur[f],
			ChangedBy: changedBy,
			CreatedAt: at,
		})
	}
	return out
}

// CaseFilter narrows a case listing.
type CaseFilter struct {
	Status   CaseStatus `form:"status"`
	Priority string     `form:"priority"`
	Pagination
}

// CreateCaseRequest represents case creation parameters
type CreateCaseRequest struct {
	PatientID int64  `json:"patient_id" binding:"required,gt=0"`
	Priority  string `json:"priority" binding:"required,priority"`
	Notes     string `json:"notes" binding:"max=4000"`
}

// UpdateCaseRequest represents case update parameters
type UpdateCaseRequest struct {
	PatientID *int64  `json:"patient_id" binding:"omitempty,gt=0"`
	Priority  *string `json:"priority" binding:"omitempty,priority"`
	Notes     *string `json:"notes" binding:"omitempty,max=4000"`
}

// AssignCaseRequest represents case assignment parameters
type AssignCaseRequest struct {
	AssignTo int64  `json:"assign_to" binding:"required,gt=0"`
	Notes    string `json:"notes" binding:"max=2000"`
}

// CaseSummary counts a principal's visible cases by global status.
type CaseSummary struct {
	Total    int                `json:"total"`
	ByStatus map[CaseStatus]int `json:"by_status"`
}
