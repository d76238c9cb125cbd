package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

type caseRepository struct {
	BaseRepository
}

func NewCaseRepository(base BaseRepository) repository.CaseRepository {
	return &caseRepository{base}
}

const caseColumns = `c.id, c.hospital_id, c.patient_id, c.current_user_id, c.created_by,
	c.status, c.technician_status, c.scientist_status, c.doctor_status,
	c.priority, c.notes, c.created_at, c.updated_at, c.deleted_at`

// visibleToPrincipal matches cases the principal holds now or was ever named
// on by an assignment, as assigner or assignee. $1 is the hospital id and $2
// the principal id.
const visibleToPrincipal = `
	c.hospital_id = $1
	AND c.deleted_at IS NULL
	AND (
		c.current_user_id = $2
		OR EXISTS (
			SELECT 1 FROM case_assignments a
			WHERE a.case_id = c.id AND (a.assigned_to = $2 OR a.user_id = $2)
		)
	)
`

func (r *caseRepository) Create(ctx context.Context, c *model.Case, assignment *model.CaseAssignment, eventType string) error {
	query := `
		INSERT INTO cases (
			hospital_id, patient_id, current_user_id, created_by, status,
			technician_status, scientist_status, doctor_status, priority, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, query,
			c.HospitalID,
			c.PatientID,
			c.CurrentUserID,
			c.CreatedBy,
			c.Status,
			c.TechnicianStatus,
			c.ScientistStatus,
			c.DoctorStatus,
			c.Priority,
			c.Notes,
			c.CreatedAt,
			c.UpdatedAt,
		).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("failed to create case: %w", err)
		}

		if assignment != nil {
			assignment.CaseID = c.ID
			assignment.CreatedAt = now
			if err := insertAssignment(ctx, tx, assignment); err != nil {
				return fmt.Errorf("failed to record initial assignment: %w", err)
			}
		}

		if eventType != "" {
			if err := r.enqueue(ctx, tx, eventType, c, c.CreatedBy, assignment, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *caseRepository) Get(ctx context.Context, hospitalID, id int64) (*model.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases c
		WHERE c.id = $1 AND c.hospital_id = $2 AND c.deleted_at IS NULL
	`
	var c model.Case
	if err := r.db.GetContext(ctx, &c, query, id, hospitalID); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *caseRepository) ListVisible(ctx context.Context, hospitalID, principalID int64, filter model.CaseFilter) ([]*model.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases c WHERE ` + visibleToPrincipal
	args := []interface{}{hospitalID, principalID}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND c.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		query += fmt.Sprintf(" AND c.priority = $%d", len(args)+1)
		args = append(args, filter.Priority)
	}

	query += fmt.Sprintf(" ORDER BY c.updated_at DESC, c.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit(), filter.Offset())

	var cases []*model.Case
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}

func (r *caseRepository) CountVisibleByStatus(ctx context.Context, hospitalID, principalID int64) (map[model.CaseStatus]int, error) {
	query := `SELECT c.status, COUNT(*) AS total FROM cases c WHERE ` + visibleToPrincipal + ` GROUP BY c.status`

	var rows []struct {
		Status model.CaseStatus `db:"status"`
		Total  int              `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, hospitalID, principalID); err != nil {
		return nil, fmt.Errorf("failed to count cases: %w", err)
	}

	counts := make(map[model.CaseStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// Mutate locks the case row, applies m and persists the result together with
// its audit rows, optional assignment and outbox event. Concurrent callers
// serialize on the row lock, so a precondition re-checked inside Apply holds
// for exactly one of them.
func (r *caseRepository) Mutate(ctx context.Context, hospitalID, id int64, m repository.CaseMutation) (*model.Case, error) {
	lockQuery := `
		SELECT ` + caseColumns + `
		FROM cases c
		WHERE c.id = $1 AND c.hospital_id = $2 AND c.deleted_at IS NULL
		FOR UPDATE
	`
	updateQuery := `
		UPDATE cases
		SET patient_id = $1, current_user_id = $2, status = $3,
			technician_status = $4, scientist_status = $5, doctor_status = $6,
			priority = $7, notes = $8, deleted_at = $9, updated_at = $10
		WHERE id = $11
	`

	var result *model.Case
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var before model.Case
		if err := tx.GetContext(ctx, &before, lockQuery, id, hospitalID); err != nil {
			return notFound(err)
		}

		after := before
		if err := m.Apply(&after); err != nil {
			return err
		}

		now := time.Now()
		audits := model.DiffCase(&before, &after, m.ChangedBy, now)
		if len(audits) == 0 && m.Assignment == nil && after.Notes == before.Notes {
			return repository.ErrNoChange
		}
		after.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, updateQuery,
			after.PatientID,
			after.CurrentUserID,
			after.Status,
			after.TechnicianStatus,
			after.ScientistStatus,
			after.DoctorStatus,
			after.Priority,
			after.Notes,
			after.DeletedAt,
			after.UpdatedAt,
			after.ID,
		); err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}

		for i := range audits {
			if err := insertCaseAudit(ctx, tx, &audits[i]); err != nil {
				return fmt.Errorf("failed to append case audit: %w", err)
			}
		}

		if m.Assignment != nil {
			m.Assignment.CaseID = after.ID
			m.Assignment.CreatedAt = now
			if err := insertAssignment(ctx, tx, m.Assignment); err != nil {
				return fmt.Errorf("failed to record assignment: %w", err)
			}
		}

		if m.EventType != "" {
			if err := r.enqueue(ctx, tx, m.EventType, &after, m.ChangedBy, m.Assignment, now); err != nil {
				return err
			}
		}

		result = &after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *caseRepository) enqueue(ctx context.Context, tx *sqlx.Tx, eventType string, c *model.Case, actor int64, a *model.CaseAssignment, now time.Time) error {
	ev := model.CaseEvent{
		CaseID:     c.ID,
		HospitalID: c.HospitalID,
		ActorID:    actor,
		Status:     c.Status,
		Priority:   c.Priority,
	}
	if a != nil {
		ev.AssignedTo = a.AssignedTo
		ev.Notes = a.Notes
	}
	event, err := model.NewOutboxEvent(eventType, ev, now)
	if err != nil {
		return fmt.Errorf("failed to build outbox event: %w", err)
	}
	if err := insertOutboxEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to enqueue outbox event: %w", err)
	}
	return nil
}
