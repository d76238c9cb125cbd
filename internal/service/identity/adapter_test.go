package identity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

type fakeUsers struct {
	repository.UserRepository
	byEmail map[string]*model.User
	linked  map[int64]string
	nextID  int64
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byEmail: map[string]*model.User{}, linked: map[int64]string{}, nextID: 500}
	for _, u := range users {
		f.byEmail[u.Email] = u
	}
	return f
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.nextID++
	u.ID = f.nextID
	cp := *u
	f.byEmail[u.Email] = &cp
	return nil
}

func (f *fakeUsers) LinkOktaID(_ context.Context, id int64, oktaID string) error {
	f.linked[id] = oktaID
	return nil
}

type fakeRoles struct{}

func (fakeRoles) GetByType(_ context.Context, rt model.RoleType) (*model.Role, error) {
	return &model.Role{ID: int64(rt), Type: rt, Name: rt.String()}, nil
}

func (fakeRoles) List(context.Context) ([]*model.Role, error) { return nil, nil }

type fakeTenants struct {
	repository.TenantRepository
	tenants []*model.Tenant
}

func (f *fakeTenants) Get(_ context.Context, id int64) (*model.Tenant, error) {
	for _, t := range f.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTenants) GetBySubdomain(_ context.Context, sub string) (*model.Tenant, error) {
	for _, t := range f.tenants {
		if t.Subdomain == sub {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

var (
	hospital1 = &model.Tenant{Base: model.Base{ID: 1}, Subdomain: "hospital1", Status: model.TenantStatusActive}
	hospital2 = &model.Tenant{Base: model.Base{ID: 2}, Subdomain: "hospital2", Status: model.TenantStatusActive}
	closed    = &model.Tenant{Base: model.Base{ID: 3}, Subdomain: "closed", Status: model.TenantStatusInactive}
)

func newTestAdapter(users *fakeUsers) *Adapter {
	return NewAdapter(users, fakeRoles{}, &fakeTenants{tenants: []*model.Tenant{hospital1, hospital2, closed}})
}

func assertion(email string, claims map[string]interface{}) Assertion {
	return Assertion{Subject: "00u-" + email, Email: email, Name: email, Claims: claims}
}

func TestAdapter_ProvisionsNewPrincipal(t *testing.T) {
	users := newFakeUsers()
	a := newTestAdapter(users)

	res, err := a.Resolve(context.Background(), assertion("new@example.com", map[string]interface{}{"userType": "doctor"}), State{Subdomain: "hospital1"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Conflicts())
	assert.Equal(t, model.RoleDoctor, res.User.RoleType)
	assert.Equal(t, int64(model.RoleDoctor), res.User.RoleID)
	assert.Equal(t, hospital1.ID, res.User.HospitalID)
	require.NotNil(t, res.User.OktaID)
	assert.Equal(t, "00u-new@example.com", *res.User.OktaID)
}

func TestAdapter_TenantPrecedence(t *testing.T) {
	users := newFakeUsers()
	a := newTestAdapter(users)
	ctx := context.Background()
	claims := map[string]interface{}{"role": "scientist"}

	res, err := a.Resolve(ctx, assertion("a@example.com", claims), State{HospitalID: 2, Subdomain: "hospital1"}, hospital1)
	require.NoError(t, err)
	assert.Equal(t, hospital2.ID, res.Tenant.ID)

	res, err = a.Resolve(ctx, assertion("b@example.com", claims), State{Subdomain: "hospital1"}, hospital2)
	require.NoError(t, err)
	assert.Equal(t, hospital1.ID, res.Tenant.ID)

	res, err = a.Resolve(ctx, assertion("c@example.com", claims), State{}, hospital2)
	require.NoError(t, err)
	assert.Equal(t, hospital2.ID, res.Tenant.ID)
}

func TestAdapter_HospitalRequired(t *testing.T) {
	a := newTestAdapter(newFakeUsers())
	ctx := context.Background()
	claims := map[string]interface{}{"role": "nurse"}

	for name, st := range map[string]State{
		"none":     {},
		"unknown":  {Subdomain: "ghost"},
		"inactive": {Subdomain: "closed"},
		"bad id":   {HospitalID: 99},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Resolve(ctx, assertion("n@example.com", claims), st, nil)
			assert.ErrorIs(t, err, ErrHospitalContextRequired)
		})
	}
}

func TestAdapter_SystemTierNeedsNoHospital(t *testing.T) {
	a := newTestAdapter(newFakeUsers())

	res, err := a.Resolve(context.Background(), assertion("root@example.com", map[string]interface{}{"role": "super"}), State{Subdomain: "hospital1"}, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Tenant)
	assert.Equal(t, model.SystemHospitalID, res.User.HospitalID)
	assert.Equal(t, model.RoleSuper, res.User.RoleType)
}

func TestAdapter_NeverRebindsExistingPrincipal(t *testing.T) {
	now := time.Now()
	existing := &model.User{
		Base:       model.Base{ID: 7, CreatedAt: now},
		Email:      "tech@example.com",
		RoleID:     int64(model.RoleTechnician),
		RoleType:   model.RoleTechnician,
		HospitalID: hospital1.ID,
		Status:     model.UserStatusActive,
	}
	users := newFakeUsers(existing)
	a := newTestAdapter(users)

	res, err := a.Resolve(context.Background(), assertion("tech@example.com", map[string]interface{}{"userType": "doctor"}), State{Subdomain: "hospital2"}, nil)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.True(t, res.Conflicts())
	assert.Equal(t, model.RoleDoctor, res.ClaimedRole)
	assert.Equal(t, model.RoleTechnician, res.User.RoleType)
	assert.Equal(t, int64(model.RoleTechnician), res.User.RoleID)
	assert.Equal(t, hospital1.ID, res.User.HospitalID)

	stored := users.byEmail["tech@example.com"]
	assert.Equal(t, model.RoleTechnician, stored.RoleType)
	assert.Equal(t, hospital1.ID, stored.HospitalID)
	assert.Equal(t, "00u-tech@example.com", users.linked[7])
}

func TestAdapter_UnsupportedRoleRejected(t *testing.T) {
	a := newTestAdapter(newFakeUsers())

	_, err := a.Resolve(context.Background(), assertion("billing@example.com", map[string]interface{}{"userType": "billing"}), State{Role: "doctor", Subdomain: "hospital1"}, nil)
	assert.ErrorIs(t, err, ErrRoleUnsupported)
}

func TestAdapter_MissingEmail(t *testing.T) {
	a := newTestAdapter(newFakeUsers())
	_, err := a.Resolve(context.Background(), Assertion{Subject: "x"}, State{}, hospital1)
	assert.ErrorIs(t, err, ErrMissingEmail)
}
