package postgres

import (
	"context"
	"fmt"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

type assignmentRepository struct {
	BaseRepository
}

func NewAssignmentRepository(base BaseRepository) repository.AssignmentRepository {
	return &assignmentRepository{base}
}

func (r *assignmentRepository) Exists(ctx context.Context, caseID, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM case_assignments
			WHERE case_id = $1 AND (assigned_to = $2 OR user_id = $2)
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, caseID, userID); err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return exists, nil
}

func (r *assignmentRepository) ListByCase(ctx context.Context, caseID int64) ([]*model.CaseAssignment, error) {
	query := `
		SELECT id, case_id, user_id, assigned_to, notes, created_at
		FROM case_assignments
		WHERE case_id = $1
		ORDER BY created_at ASC, id ASC
	`
	var assignments []*model.CaseAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, caseID); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return assignments, nil
}
