package auth

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
	"github.com/megcare/caseflow/internal/service/identity"
	"github.com/megcare/caseflow/internal/session"
	"github.com/megcare/caseflow/pkg/security"
)

type fakeUsers struct {
	repository.UserRepository
	users     map[int64]*model.User
	lastLogin map[int64]time.Time
}

func (f *fakeUsers) Get(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	u.ID = int64(len(f.users) + 100)
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) LinkOktaID(context.Context, int64, string) error { return nil }

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	f.lastLogin[id] = at
	return nil
}

type fakeRoles struct{}

func (fakeRoles) GetByType(_ context.Context, rt model.RoleType) (*model.Role, error) {
	return &model.Role{ID: int64(rt), Type: rt, Name: rt.String()}, nil
}

func (fakeRoles) List(context.Context) ([]*model.Role, error) { return nil, nil }

type fakeTenants struct {
	repository.TenantRepository
}

func (fakeTenants) GetBySubdomain(_ context.Context, sub string) (*model.Tenant, error) {
	if sub == hospital1.Subdomain {
		return hospital1, nil
	}
	return nil, repository.ErrNotFound
}

type fakeFederation struct {
	assertion  identity.Assertion
	revalidate error
	calls      int
}

func (f *fakeFederation) AuthCodeURL(st identity.State) (string, string, error) {
	return "https://idp.example.com/authorize?sub=" + st.Subdomain, "nonce-1", nil
}

func (f *fakeFederation) ParseState(raw string) (*identity.State, error) {
	if raw != "signed" {
		return nil, security.ErrInvalidState
	}
	return &identity.State{Role: "doctor", Subdomain: hospital1.Subdomain, Nonce: "nonce-1"}, nil
}

func (f *fakeFederation) Exchange(context.Context, string, string) (*identity.Tokens, error) {
	return &identity.Tokens{IDToken: "id-token", AccessToken: "access", Assertion: f.assertion}, nil
}

func (f *fakeFederation) Revalidate(context.Context, string) error {
	f.calls++
	return f.revalidate
}

var hospital1 = &model.Tenant{Base: model.Base{ID: 1}, Subdomain: "hospital1", Status: model.TenantStatusActive}

type fixture struct {
	users *fakeUsers
	fed   *fakeFederation
	svc   *Service
	sess  *session.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher := security.NewBcryptHasher(4)
	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)

	users := &fakeUsers{
		users: map[int64]*model.User{
			1: {Base: model.Base{ID: 1}, Email: "tech@example.com", PasswordHash: &hash, RoleType: model.RoleTechnician, HospitalID: 1, Status: model.UserStatusActive},
			2: {Base: model.Base{ID: 2}, Email: "away@example.com", PasswordHash: &hash, RoleType: model.RoleDoctor, HospitalID: 2, Status: model.UserStatusActive},
			3: {Base: model.Base{ID: 3}, Email: "gone@example.com", PasswordHash: &hash, RoleType: model.RoleNurse, HospitalID: 1, Status: model.UserStatusInactive},
			4: {Base: model.Base{ID: 4}, Email: "root@example.com", PasswordHash: &hash, RoleType: model.RoleSuper, HospitalID: model.SystemHospitalID, Status: model.UserStatusActive},
			5: {Base: model.Base{ID: 5}, Email: "sso@example.com", RoleType: model.RoleScientist, HospitalID: 1, Status: model.UserStatusActive},
		},
		lastLogin: map[int64]time.Time{},
	}
	fed := &fakeFederation{}
	adapter := identity.NewAdapter(users, fakeRoles{}, fakeTenants{})
	svc := NewService(users, hasher, adapter, fed, nil, Config{PasswordLogin: true, RevalidateInterval: 5 * time.Minute})

	store := session.NewMemoryStore(time.Hour, time.Minute)
	return &fixture{users: users, fed: fed, svc: svc, sess: session.New(store, time.Hour)}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		email    string
		password string
		tenant   *model.Tenant
		wantErr  error
		redirect string
	}{
		{name: "technician", email: "Tech@Example.com", password: "correct-horse", tenant: hospital1, redirect: "/technician/dashboard"},
		{name: "system tier anywhere", email: "root@example.com", password: "correct-horse", redirect: "/system/dashboard"},
		{name: "wrong password", email: "tech@example.com", password: "battery-staple", tenant: hospital1, wantErr: model.ErrInvalidCredentials},
		{name: "unknown email", email: "nobody@example.com", password: "correct-horse", tenant: hospital1, wantErr: model.ErrInvalidCredentials},
		{name: "federated only", email: "sso@example.com", password: "correct-horse", tenant: hospital1, wantErr: model.ErrInvalidCredentials},
		{name: "inactive", email: "gone@example.com", password: "correct-horse", tenant: hospital1, wantErr: model.ErrUserInactive},
		{name: "other hospital", email: "away@example.com", password: "correct-horse", tenant: hospital1, wantErr: ErrWrongHospital},
		{name: "no hospital", email: "tech@example.com", password: "correct-horse", wantErr: identity.ErrHospitalContextRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			resp, err := f.svc.Login(ctx, f.sess, tt.tenant, model.LoginRequest{Email: tt.email, Password: tt.password})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, ok := f.sess.Get(session.KeyUserID)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.redirect, resp.Redirect)
			id, ok := f.sess.Get(session.KeyUserID)
			require.True(t, ok)
			assert.Equal(t, strconv.FormatInt(resp.User.ID, 10), id)
			assert.Contains(t, f.users.lastLogin, resp.User.ID)
		})
	}
}

func TestFederatedLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fed.assertion = identity.Assertion{
		Subject: "00u5",
		Email:   "sso@example.com",
		Claims:  map[string]interface{}{"userType": "scientist"},
	}

	url, err := f.svc.BeginFederated(f.sess, hospital1, model.OIDCLoginRequest{Role: "doctor"})
	require.NoError(t, err)
	assert.Contains(t, url, "sub=hospital1")
	nonce, _ := f.sess.Get(session.KeyIdentityStateNonce)
	assert.Equal(t, "nonce-1", nonce)

	resp, err := f.svc.CompleteFederated(ctx, f.sess, hospital1, model.OIDCCallbackRequest{Code: "c", State: "signed"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.User.ID)
	assert.Equal(t, "/scientist/dashboard", resp.Redirect)

	access, _ := f.sess.Get(session.KeyIdentityAccess)
	assert.Equal(t, "access", access)
	_, ok := f.sess.GetTime(session.KeyIdentityValidated)
	assert.True(t, ok)
	_, ok = f.sess.Get(session.KeyIdentityStateNonce)
	assert.False(t, ok)
}

func TestFederatedLogin_ReplayedCallbackRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fed.assertion = identity.Assertion{Email: "sso@example.com", Claims: map[string]interface{}{"role": "scientist"}}

	_, err := f.svc.CompleteFederated(ctx, f.sess, hospital1, model.OIDCCallbackRequest{Code: "c", State: "signed"})
	assert.ErrorIs(t, err, security.ErrInvalidState)
}

func TestFederatedLogin_ExistingPrincipalElsewhereDenied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fed.assertion = identity.Assertion{Email: "away@example.com", Claims: map[string]interface{}{"role": "doctor"}}
	_, err := f.svc.BeginFederated(f.sess, hospital1, model.OIDCLoginRequest{})
	require.NoError(t, err)

	_, err = f.svc.CompleteFederated(ctx, f.sess, hospital1, model.OIDCCallbackRequest{Code: "c", State: "signed"})
	assert.ErrorIs(t, err, ErrWrongHospital)
	assert.Equal(t, int64(2), f.users.users[2].HospitalID)
}

func TestRevalidate(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, lastValidated time.Duration) *fixture {
		f := newFixture(t)
		f.sess.Set(session.KeyUserID, "5")
		f.sess.Set(session.KeyIdentityAccess, "access")
		f.sess.SetTime(session.KeyIdentityValidated, time.Now().Add(-lastValidated))
		return f
	}

	t.Run("fresh session skips provider", func(t *testing.T) {
		f := setup(t, time.Minute)
		require.NoError(t, f.svc.Revalidate(ctx, f.sess))
		assert.Zero(t, f.fed.calls)
	})

	t.Run("stale session revalidated", func(t *testing.T) {
		f := setup(t, 10*time.Minute)
		require.NoError(t, f.svc.Revalidate(ctx, f.sess))
		assert.Equal(t, 1, f.fed.calls)
		last, _ := f.sess.GetTime(session.KeyIdentityValidated)
		assert.WithinDuration(t, time.Now(), last, time.Minute)
	})

	t.Run("unreachable provider keeps session", func(t *testing.T) {
		f := setup(t, 10*time.Minute)
		f.fed.revalidate = identity.ErrProviderUnreachable
		require.NoError(t, f.svc.Revalidate(ctx, f.sess))
		_, ok := f.sess.Get(session.KeyUserID)
		assert.True(t, ok)
	})

	t.Run("rejection clears identity", func(t *testing.T) {
		f := setup(t, 10*time.Minute)
		f.fed.revalidate = identity.ErrProviderRejected
		assert.ErrorIs(t, f.svc.Revalidate(ctx, f.sess), ErrSessionRevoked)
		for _, key := range append([]string{session.KeyUserID}, session.IdentityKeys...) {
			_, ok := f.sess.Get(key)
			assert.False(t, ok, key)
		}
	})

	t.Run("password sessions are not revalidated", func(t *testing.T) {
		f := newFixture(t)
		f.sess.Set(session.KeyUserID, "1")
		require.NoError(t, f.svc.Revalidate(ctx, f.sess))
		assert.Zero(t, f.fed.calls)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sess.Set(session.KeyUserID, "4")
	f.sess.Set(session.KeyIdentityIDToken, "id")

	assert.Equal(t, "/system/login", f.svc.Logout(ctx, f.sess))
	_, ok := f.sess.Get(session.KeyUserID)
	assert.False(t, ok)
	_, ok = f.sess.Get(session.KeyIdentityIDToken)
	assert.False(t, ok)
}
