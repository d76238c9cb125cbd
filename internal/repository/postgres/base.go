package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// notFound maps sql.ErrNoRows onto repository.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

const insertCaseAuditQuery = `
	INSERT INTO case_audits (
		case_id, field_name, old_value, new_value, changed_by, created_at
	) VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id
`

// insertCaseAudit appends an audit row within a transaction
func insertCaseAudit(ctx context.Context, tx *sqlx.Tx, a *model.CaseAudit) error {
	return tx.QueryRowxContext(ctx, insertCaseAuditQuery,
		a.CaseID,
		a.FieldName,
		a.OldValue,
		a.NewValue,
		a.ChangedBy,
		a.CreatedAt,
	).Scan(&a.ID)
}

const insertAssignmentQuery = `
	INSERT INTO case_assignments (
		case_id, user_id, assigned_to, notes, created_at
	) VALUES ($1, $2, $3, $4, $5)
	RETURNING id
`

func insertAssignment(ctx context.Context, tx *sqlx.Tx, a *model.CaseAssignment) error {
	return tx.QueryRowxContext(ctx, insertAssignmentQuery,
		a.CaseID,
		a.UserID,
		a.AssignedTo,
		a.Notes,
		a.CreatedAt,
	).Scan(&a.ID)
}

const insertOutboxQuery = `
	INSERT INTO outbox_events (
		id, event_type, hospital_id, payload, status, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func insertOutboxEvent(ctx context.Context, tx *sqlx.Tx, e *model.OutboxEvent) error {
	_, err := tx.ExecContext(ctx, insertOutboxQuery,
		e.ID,
		e.EventType,
		e.HospitalID,
		e.Payload,
		e.Status,
		e.CreatedAt,
		e.UpdatedAt,
	)
	return err
}
