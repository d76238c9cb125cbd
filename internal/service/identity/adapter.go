package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

// Resolution is the principal an assertion maps to. ClaimedRole and Tenant
// are what the login asked for; User carries the stored binding, which may
// differ for an existing principal.
type Resolution struct {
	User        *model.User
	ClaimedRole model.RoleType
	Tenant      *model.Tenant
	Created     bool
}

// Conflicts reports whether the stored principal is bound to a different
// role or hospital than the login claimed.
func (r *Resolution) Conflicts() bool {
	if r.User.RoleType != r.ClaimedRole {
		return true
	}
	if r.Tenant == nil {
		return r.User.HospitalID != model.SystemHospitalID
	}
	return r.User.HospitalID != r.Tenant.ID
}

// Adapter maps provider assertions onto local principals.
type Adapter struct {
	users   repository.UserRepository
	roles   repository.RoleRepository
	tenants repository.TenantRepository
}

func NewAdapter(users repository.UserRepository, roles repository.RoleRepository, tenants repository.TenantRepository) *Adapter {
	return &Adapter{users: users, roles: roles, tenants: tenants}
}

// Resolve finds or provisions the principal for a. An existing principal's
// role and hospital are never rewritten; only a missing provider subject is
// linked.
func (a *Adapter) Resolve(ctx context.Context, as Assertion, st State, current *model.Tenant) (*Resolution, error) {
	if as.Email == "" {
		return nil, ErrMissingEmail
	}

	role, err := ResolveRole(as, st.Role)
	if err != nil {
		return nil, err
	}

	tenant, err := a.resolveTenant(ctx, st, current)
	if err != nil {
		return nil, err
	}
	if role.IsSystem() {
		tenant = nil
	} else if tenant == nil {
		return nil, ErrHospitalContextRequired
	}

	res := &Resolution{ClaimedRole: role, Tenant: tenant}

	user, err := a.users.GetByEmail(ctx, as.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		user, err = a.provision(ctx, as, role, tenant)
		if err != nil {
			return nil, err
		}
		res.Created = true
	case err != nil:
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	default:
		if user.OktaID == nil && as.Subject != "" {
			if err := a.users.LinkOktaID(ctx, user.ID, as.Subject); err != nil {
				return nil, fmt.Errorf("failed to link identity: %w", err)
			}
			subject := as.Subject
			user.OktaID = &subject
		}
	}
	res.User = user

	if res.Conflicts() {
		log.Warn().
			Int64("user_id", user.ID).
			Str("stored_role", user.RoleType.String()).
			Str("claimed_role", role.String()).
			Int64("stored_hospital_id", user.HospitalID).
			Msg("Identity claims differ from stored binding")
	}
	return res, nil
}

// resolveTenant prefers the hospital id in the state, then its subdomain,
// then the hospital already active in the session. Unknown or inactive
// hospitals resolve to nil.
func (a *Adapter) resolveTenant(ctx context.Context, st State, current *model.Tenant) (*model.Tenant, error) {
	var (
		tenant *model.Tenant
		err    error
	)
	switch {
	case st.HospitalID > 0:
		tenant, err = a.tenants.Get(ctx, st.HospitalID)
	case st.Subdomain != "":
		tenant, err = a.tenants.GetBySubdomain(ctx, st.Subdomain)
	default:
		tenant = current
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve login hospital: %w", err)
	}
	if !tenant.IsActive() {
		return nil, nil
	}
	return tenant, nil
}

func (a *Adapter) provision(ctx context.Context, as Assertion, role model.RoleType, tenant *model.Tenant) (*model.User, error) {
	r, err := a.roles.GetByType(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to get role %s: %w", role, err)
	}

	hospitalID := model.SystemHospitalID
	if tenant != nil {
		hospitalID = tenant.ID
	}
	user := &model.User{
		Email:      as.Email,
		Name:       as.Name,
		RoleID:     r.ID,
		RoleType:   role,
		HospitalID: hospitalID,
		Status:     model.UserStatusActive,
	}
	if as.Subject != "" {
		subject := as.Subject
		user.OktaID = &subject
	}

	if err := a.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().
		Int64("user_id", user.ID).
		Str("role", role.String()).
		Int64("hospital_id", hospitalID).
		Msg("Provisioned user from identity provider")
	return user, nil
}
