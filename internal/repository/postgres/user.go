package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

const userSelect = `
	SELECT u.id, u.email, u.name, u.password_hash, u.role_id, r.type AS role_type,
		u.hospital_id, u.status, u.okta_id, u.last_login_at,
		u.created_at, u.updated_at, u.deleted_at
	FROM users u
	JOIN roles r ON r.id = u.role_id
`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			email, name, password_hash, role_id, hospital_id,
			status, okta_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	if user.Status == "" {
		user.Status = model.UserStatusActive
	}

	err := r.db.QueryRowxContext(ctx, query,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.RoleID,
		user.HospitalID,
		user.Status,
		user.OktaID,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	query := userSelect + ` WHERE u.id = $1 AND u.deleted_at IS NULL`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := userSelect + ` WHERE u.email = $1 AND u.deleted_at IS NULL`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(email)); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filters *model.UserFilters) ([]*model.User, error) {
	query := userSelect + ` WHERE u.deleted_at IS NULL`
	var args []interface{}

	if filters != nil {
		if filters.HospitalID != 0 {
			query += fmt.Sprintf(" AND u.hospital_id = $%d", len(args)+1)
			args = append(args, filters.HospitalID)
		}
		if filters.RoleType.Valid() {
			query += fmt.Sprintf(" AND r.type = $%d", len(args)+1)
			args = append(args, filters.RoleType.String())
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND u.status = $%d", len(args)+1)
			args = append(args, filters.Status)
		}
	}
	query += " ORDER BY u.id"

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// LinkOktaID records the federated subject for a principal that has none.
// Role and hospital are never touched here.
func (r *userRepository) LinkOktaID(ctx context.Context, id int64, oktaID string) error {
	query := `
		UPDATE users
		SET okta_id = $1, updated_at = $2
		WHERE id = $3 AND okta_id IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, oktaID, time.Now(), id); err != nil {
		return fmt.Errorf("failed to link okta id: %w", err)
	}
	return nil
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
