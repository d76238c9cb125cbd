package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

type tenantRepository struct {
	BaseRepository
}

func NewTenantRepository(base BaseRepository) repository.TenantRepository {
	return &tenantRepository{base}
}

const tenantColumns = `id, name, subdomain, status, created_at, updated_at, deleted_at`

func (r *tenantRepository) Create(ctx context.Context, tenant *model.Tenant) error {
	query := `
		INSERT INTO hospitals (
			name, subdomain, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
		RETURNING id
	`
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = tenant.CreatedAt
	if tenant.Status == "" {
		tenant.Status = model.TenantStatusActive
	}

	err := r.db.QueryRowxContext(ctx, query,
		tenant.Name,
		tenant.Subdomain,
		tenant.Status,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	).Scan(&tenant.ID)
	if err != nil {
		return fmt.Errorf("failed to create hospital: %w", err)
	}
	return nil
}

func (r *tenantRepository) Get(ctx context.Context, id int64) (*model.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM hospitals WHERE id = $1 AND deleted_at IS NULL`

	var tenant model.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, id); err != nil {
		return nil, notFound(err)
	}
	return &tenant, nil
}

// GetBySubdomain matches exactly, whatever the hospital's status.
func (r *tenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*model.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM hospitals WHERE subdomain = $1 AND deleted_at IS NULL`

	var tenant model.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, subdomain); err != nil {
		return nil, notFound(err)
	}
	return &tenant, nil
}

func (r *tenantRepository) FirstActive(ctx context.Context) (*model.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM hospitals
		WHERE status = $1 AND deleted_at IS NULL
		ORDER BY id ASC
		LIMIT 1
	`
	var tenant model.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, model.TenantStatusActive); err != nil {
		return nil, notFound(err)
	}
	return &tenant, nil
}

func (r *tenantRepository) List(ctx context.Context) ([]*model.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM hospitals WHERE deleted_at IS NULL ORDER BY id ASC`

	var tenants []*model.Tenant
	if err := r.db.SelectContext(ctx, &tenants, query); err != nil {
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}
	return tenants, nil
}

func (r *tenantRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `
		UPDATE hospitals
		SET status = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update hospital status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}
