package postgres

import (
	"context"
	"fmt"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

// caseAuditRepository reads the audit trail. Rows are only written inside
// case mutations and are never updated or deleted.
type caseAuditRepository struct {
	BaseRepository
}

func NewCaseAuditRepository(base BaseRepository) repository.CaseAuditRepository {
	return &caseAuditRepository{base}
}

func (r *caseAuditRepository) ListByCase(ctx context.Context, caseID int64) ([]*model.CaseAudit, error) {
	query := `
		SELECT id, case_id, field_name, old_value, new_value, changed_by, created_at
		FROM case_audits
		WHERE case_id = $1
		ORDER BY created_at ASC, id ASC
	`
	var audits []*model.CaseAudit
	if err := r.db.SelectContext(ctx, &audits, query, caseID); err != nil {
		return nil, fmt.Errorf("failed to list case audits: %w", err)
	}
	return audits, nil
}
