package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

func TestCaseRepository_ListVisible(t *testing.T) {
	_, mock, base := setupMockDB(t)
	repo := NewCaseRepository(base)

	mock.ExpectQuery(`SELECT (.+) FROM cases c WHERE (.+) OR EXISTS \((.+)a.assigned_to = \$2 OR a.user_id = \$2(.+) AND c.status = \$3 ORDER BY (.+) LIMIT \$4 OFFSET \$5`).
		WithArgs(int64(7), int64(3), "assigned", 50, 0).
		WillReturnRows(caseRows().
			AddRow(42, 7, 100, 5, 5, "assigned", "draft", "assigned", "assigned", "high", "", fixedTime, fixedTime, nil))

	cases, err := repo.ListVisible(context.Background(), 7, 3, model.CaseFilter{Status: model.CaseStatusAssigned})
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, int64(42), cases[0].ID)
	assert.Equal(t, int64(5), cases[0].CurrentUserID)
	assert.Equal(t, model.CaseStatusAssigned, cases[0].DoctorStatus)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepository_CountVisibleByStatus(t *testing.T) {
	_, mock, base := setupMockDB(t)
	repo := NewCaseRepository(base)

	mock.ExpectQuery(`SELECT c.status, COUNT\(\*\) AS total FROM cases c WHERE (.+) GROUP BY c.status`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "total"}).
			AddRow("assigned", 2).
			AddRow("completed", 5))

	counts, err := repo.CountVisibleByStatus(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.CaseStatusAssigned])
	assert.Equal(t, 5, counts[model.CaseStatusCompleted])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepository_Create(t *testing.T) {
	_, mock, base := setupMockDB(t)
	repo := NewCaseRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO cases`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectQuery(`INSERT INTO case_assignments`).
		WithArgs(int64(42), int64(5), int64(5), "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO outbox_events`).
		WithArgs(sqlmock.AnyArg(), model.EventCaseCreated, int64(7), sqlmock.AnyArg(), "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := &model.Case{
		HospitalID:       7,
		PatientID:        100,
		CurrentUserID:    5,
		CreatedBy:        5,
		Status:           model.CaseStatusAssigned,
		TechnicianStatus: model.CaseStatusDraft,
		ScientistStatus:  model.CaseStatusAssigned,
		DoctorStatus:     model.CaseStatusAssigned,
		Priority:         model.PriorityHigh,
	}
	assignment := &model.CaseAssignment{UserID: 5, AssignedTo: 5}
	require.NoError(t, repo.Create(context.Background(), c, assignment, model.EventCaseCreated))
	assert.Equal(t, int64(42), c.ID)
	assert.Equal(t, int64(42), assignment.CaseID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepository_Mutate_WritesAuditsAndEvent(t *testing.T) {
	_, mock, base := setupMockDB(t)
	repo := NewCaseRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM cases c WHERE c.id = \$1 AND c.hospital_id = \$2 (.+) FOR UPDATE`).
		WithArgs(int64(42), int64(7)).
		WillReturnRows(caseRows().
			AddRow(42, 7, 100, 3, 5, "assigned", "draft", "assigned", "assigned", "high", "", fixedTime, fixedTime, nil))
	mock.ExpectExec(`UPDATE cases`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO case_audits`).
		WithArgs(int64(42), model.FieldDoctorStatus, "assigned", "in_progress", int64(3), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO case_audits`).
		WithArgs(int64(42), model.FieldStatus, "assigned", "in_progress", int64(3), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO outbox_events`).
		WithArgs(sqlmock.AnyArg(), model.EventCaseStatusChanged, int64(7), sqlmock.AnyArg(), "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.Mutate(context.Background(), 7, 42, repository.CaseMutation{
		ChangedBy: 3,
		EventType: model.EventCaseStatusChanged,
		Apply: func(c *model.Case) error {
			c.DoctorStatus = model.CaseStatusInProgress
			c.Recompute(nil)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusInProgress, updated.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepository_Mutate_NoChangeRollsBack(t *testing.T) {
	_, mock, base := setupMockDB(t)
	repo := NewCaseRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FOR UPDATE`).
		WithArgs(int64(42), int64(7)).
		WillReturnRows(caseRows().
			AddRow(42, 7, 100, 3, 5, "in_progress", "draft", "assigned", "in_progress", "high", "", fixedTime, fixedTime, nil))
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), 7, 42, repository.CaseMutation{
		ChangedBy: 3,
		Apply: func(c *model.Case) error {
			if c.DoctorStatus != model.CaseStatusAssigned {
				return repository.ErrNoChange
			}
			c.DoctorStatus = model.CaseStatusInProgress
			return nil
		},
	})
	assert.ErrorIs(t, err, repository.ErrNoChange)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepository_Mutate_NotFound(t *testing.T) {
	_, mock, base := setupMockDB(t)
	repo := NewCaseRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FOR UPDATE`).
		WithArgs(int64(42), int64(8)).
		WillReturnRows(caseRows())
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), 8, 42, repository.CaseMutation{
		Apply: func(*model.Case) error { return errors.New("must not be called") },
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
