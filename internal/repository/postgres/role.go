package postgres

import (
	"context"
	"fmt"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

type roleRepository struct {
	BaseRepository
}

func NewRoleRepository(base BaseRepository) repository.RoleRepository {
	return &roleRepository{base}
}

func (r *roleRepository) GetByType(ctx context.Context, roleType model.RoleType) (*model.Role, error) {
	query := `SELECT id, type, name FROM roles WHERE type = $1`

	var role model.Role
	if err := r.db.GetContext(ctx, &role, query, roleType.String()); err != nil {
		return nil, notFound(err)
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context) ([]*model.Role, error) {
	var roles []*model.Role
	if err := r.db.SelectContext(ctx, &roles, `SELECT id, type, name FROM roles ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}
