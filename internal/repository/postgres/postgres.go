package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/megcare/caseflow/internal/repository"
)

// Repositories bundles every postgres-backed store.
type Repositories struct {
	Tenants     repository.TenantRepository
	Roles       repository.RoleRepository
	Users       repository.UserRepository
	Cases       repository.CaseRepository
	Assignments repository.AssignmentRepository
	Audits      repository.CaseAuditRepository
	Outbox      repository.OutboxRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	base := NewBaseRepository(db)
	return &Repositories{
		Tenants:     NewTenantRepository(base),
		Roles:       NewRoleRepository(base),
		Users:       NewUserRepository(base),
		Cases:       NewCaseRepository(base),
		Assignments: NewAssignmentRepository(base),
		Audits:      NewCaseAuditRepository(base),
		Outbox:      NewOutboxRepository(base),
	}
}
