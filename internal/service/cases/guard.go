package cases

import (
	"context"
	"errors"
	"fmt"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

// Guard decides whether a principal may see a case.
type Guard struct {
	cases       repository.CaseRepository
	assignments repository.AssignmentRepository
}

func NewGuard(cases repository.CaseRepository, assignments repository.AssignmentRepository) *Guard {
	return &Guard{cases: cases, assignments: assignments}
}

// Authorize checks the role-level permission for action within tenant. It
// runs before any access check, so a denied role learns nothing about the
// case.
func Authorize(tenant *model.Tenant, user *model.User, action model.Action) error {
	if tenant == nil {
		return ErrHospitalRequired
	}
	if !user.BelongsTo(tenant) || !user.RoleType.Can(action) {
		return ErrActionForbidden
	}
	return nil
}

// HasAccess reports whether user may see c: the case belongs to the active
// hospital and the user holds it now or was ever named by one of its
// assignments. Access is never revoked by reassignment.
func (g *Guard) HasAccess(ctx context.Context, tenant *model.Tenant, user *model.User, c *model.Case) (bool, error) {
	if tenant == nil || c.HospitalID != tenant.ID || !user.BelongsTo(tenant) {
		return false, nil
	}
	if c.CurrentUserID == user.ID {
		return true, nil
	}
	ok, err := g.assignments.Exists(ctx, c.ID, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check case assignment: %w", err)
	}
	return ok, nil
}

// Load fetches a case the user may see, reporting ErrCaseNotFound for both
// missing and inaccessible cases.
func (g *Guard) Load(ctx context.Context, tenant *model.Tenant, user *model.User, id int64) (*model.Case, error) {
	c, err := g.cases.Get(ctx, tenant.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	ok, err := g.HasAccess(ctx, tenant, user, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCaseNotFound
	}
	return c, nil
}
