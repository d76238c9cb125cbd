package cases

import (
	"time"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

// Each function below returns the Apply step of a repository.CaseMutation.
// They run against the locked row, so every precondition is re-checked there.

// autoProgress moves the viewer's track from assigned to in_progress, and
// the global status with it when that was assigned too.
func autoProgress(track model.Track, policy model.StatusPolicy) func(*model.Case) error {
	return func(c *model.Case) error {
		if track == model.TrackNone || c.TrackStatus(track) != model.CaseStatusAssigned {
			return repository.ErrNoChange
		}
		wasAssigned := c.Status == model.CaseStatusAssigned

		c.SetTrackStatus(track, model.CaseStatusInProgress)
		c.Recompute(policy)
		if wasAssigned && c.Status == model.CaseStatusAssigned {
			c.Status = model.CaseStatusInProgress
		}
		return nil
	}
}

// completeAll sets every track and the global status to completed.
func completeAll() func(*model.Case) error {
	return func(c *model.Case) error {
		if c.Status == model.CaseStatusCompleted {
			return ErrAlreadyCompleted
		}
		for _, t := range []model.Track{model.TrackTechnician, model.TrackScientist, model.TrackDoctor} {
			c.SetTrackStatus(t, model.CaseStatusCompleted)
		}
		c.Status = model.CaseStatusCompleted
		return nil
	}
}

// assignTo hands the case to assignee and puts their track back to
// assigned unless it is already finished.
func assignTo(assignee *model.User, policy model.StatusPolicy) func(*model.Case) error {
	return func(c *model.Case) error {
		if c.Status.Terminal() {
			return ErrCaseClosed
		}
		c.CurrentUserID = assignee.ID
		if track := assignee.RoleType.Track(); track != model.TrackNone && !c.TrackStatus(track).Terminal() {
			c.SetTrackStatus(track, model.CaseStatusAssigned)
		}
		c.Recompute(policy)
		return nil
	}
}

func update(req model.UpdateCaseRequest) func(*model.Case) error {
	return func(c *model.Case) error {
		if c.Status.Terminal() {
			return ErrCaseClosed
		}
		if req.PatientID != nil {
			c.PatientID = *req.PatientID
		}
		if req.Priority != nil {
			if !model.ValidPriority(*req.Priority) {
				return ErrInvalidPriority
			}
			c.Priority = *req.Priority
		}
		if req.Notes != nil {
			c.Notes = *req.Notes
		}
		return nil
	}
}

func softDelete(now func() time.Time) func(*model.Case) error {
	return func(c *model.Case) error {
		at := now()
		c.DeletedAt = &at
		return nil
	}
}

// initialCase builds a new case as created by user. The technician track
// starts in draft; scientist and doctor tracks start assigned.
func initialCase(tenant *model.Tenant, user *model.User, req model.CreateCaseRequest, policy model.StatusPolicy) *model.Case {
	c := &model.Case{
		HospitalID:       tenant.ID,
		PatientID:        req.PatientID,
		CurrentUserID:    user.ID,
		CreatedBy:        user.ID,
		TechnicianStatus: model.CaseStatusDraft,
		ScientistStatus:  model.CaseStatusAssigned,
		DoctorStatus:     model.CaseStatusAssigned,
		Priority:         req.Priority,
		Notes:            req.Notes,
	}
	c.Recompute(policy)
	return c
}
