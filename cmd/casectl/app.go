package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/megcare/caseflow/internal/config"
	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
	"github.com/megcare/caseflow/internal/repository/postgres"
	"github.com/megcare/caseflow/pkg/security"
)

var validate = validator.New()

// app lazily opens the database so that --help works without one.
type app struct {
	log   *zap.Logger
	cfg   *config.Config
	db    *sqlx.DB
	repos *postgres.Repositories
}

func (a *app) open() error {
	if a.db != nil {
		return nil
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.db = db
	a.repos = postgres.NewRepositories(db)
	return nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

// validateSubdomain accepts a single lower-case DNS label.
func validateSubdomain(subdomain string) error {
	if err := validate.Var(subdomain, "required,max=63,hostname_rfc1123,excludes=.,lowercase"); err != nil {
		return fmt.Errorf("invalid subdomain %q: must be one lower-case DNS label", subdomain)
	}
	return nil
}

func parseTenantStatus(s string) (string, error) {
	switch strings.ToLower(s) {
	case model.TenantStatusActive:
		return model.TenantStatusActive, nil
	case model.TenantStatusInactive:
		return model.TenantStatusInactive, nil
	}
	return "", fmt.Errorf("unknown status %q (want active or inactive)", s)
}

type newUser struct {
	Email      string `validate:"required,email"`
	Name       string `validate:"required,max=255"`
	Role       string `validate:"required"`
	HospitalID int64  `validate:"gte=0"`
	Password   string `validate:"omitempty,min=8"`
}

// createUser provisions a principal. Hospital principals need an active
// hospital; system principals never get one.
func createUser(ctx context.Context, users repository.UserRepository, roles repository.RoleRepository,
	tenants repository.TenantRepository, hasher security.PasswordHasher, in newUser) (*model.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid user: %w", err)
	}
	roleType, ok := model.ParseRoleType(in.Role)
	if !ok {
		return nil, fmt.Errorf("unsupported role %q", in.Role)
	}

	hospitalID := model.SystemHospitalID
	if !roleType.IsSystem() {
		if in.HospitalID == 0 {
			return nil, fmt.Errorf("role %s requires --hospital", roleType)
		}
		tenant, err := tenants.Get(ctx, in.HospitalID)
		if err != nil {
			return nil, fmt.Errorf("failed to get hospital %d: %w", in.HospitalID, err)
		}
		if !tenant.IsActive() {
			return nil, fmt.Errorf("hospital %s is inactive", tenant.Subdomain)
		}
		hospitalID = tenant.ID
	}

	role, err := roles.GetByType(ctx, roleType)
	if err != nil {
		return nil, fmt.Errorf("failed to get role %s: %w", roleType, err)
	}

	user := &model.User{
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Name:       in.Name,
		RoleID:     role.ID,
		RoleType:   roleType,
		HospitalID: hospitalID,
		Status:     model.UserStatusActive,
	}
	if in.Password != "" {
		hash, err := hasher.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hash
	}

	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
