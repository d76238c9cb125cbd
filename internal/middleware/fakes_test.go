package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
	"github.com/megcare/caseflow/internal/service/hospital"
	"github.com/megcare/caseflow/internal/service/identity"
	"github.com/megcare/caseflow/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testSessionConfig = SessionConfig{
	CookieName:   "caseflow_session",
	CookieDomain: ".meg.www",
	TTL:          time.Hour,
}

type fakeTenants struct {
	mu   sync.Mutex
	byID map[int64]*model.Tenant
}

func newFakeTenants(tenants ...*model.Tenant) *fakeTenants {
	f := &fakeTenants{byID: make(map[int64]*model.Tenant)}
	for _, t := range tenants {
		f.byID[t.ID] = t
	}
	return f
}

func (f *fakeTenants) Create(_ context.Context, t *model.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[t.ID] = t
	return nil
}

func (f *fakeTenants) Get(_ context.Context, id int64) (*model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTenants) GetBySubdomain(_ context.Context, subdomain string) (*model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byID {
		if t.Subdomain == subdomain {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTenants) FirstActive(_ context.Context) (*model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first *model.Tenant
	for _, t := range f.byID {
		if t.IsActive() && (first == nil || t.ID < first.ID) {
			first = t
		}
	}
	if first == nil {
		return nil, repository.ErrNotFound
	}
	cp := *first
	return &cp, nil
}

func (f *fakeTenants) List(_ context.Context) ([]*model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Tenant, 0, len(f.byID))
	for _, t := range f.byID {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeTenants) UpdateStatus(_ context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Status = status
	return nil
}

type fakeUsers struct {
	repository.UserRepository
	byID map[int64]*model.User
}

func (f *fakeUsers) Get(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateLastLogin(context.Context, int64, time.Time) error { return nil }

type fakeFederation struct {
	revalidateErr error
	calls         int
}

func (f *fakeFederation) AuthCodeURL(identity.State) (string, string, error) {
	return "https://idp.example/authorize", "nonce", nil
}

func (f *fakeFederation) ParseState(string) (*identity.State, error) { return &identity.State{}, nil }

func (f *fakeFederation) Exchange(context.Context, string, string) (*identity.Tokens, error) {
	return nil, identity.ErrTokenInvalid
}

func (f *fakeFederation) Revalidate(context.Context, string) error {
	f.calls++
	return f.revalidateErr
}

func hospital1() *model.Tenant {
	return &model.Tenant{Base: model.Base{ID: 1}, Name: "Hospital One", Subdomain: "hospital1", Status: model.TenantStatusActive}
}

func hospital2() *model.Tenant {
	return &model.Tenant{Base: model.Base{ID: 2}, Name: "Hospital Two", Subdomain: "hospital2", Status: model.TenantStatusActive}
}

func newHospitalService(tenants *fakeTenants) *hospital.Service {
	resolver := hospital.NewResolver(tenants, hospital.ResolverConfig{MainDomain: "meg.www", AllowTenantOverride: true})
	return hospital.NewService(resolver, tenants, nil)
}

// siteEngine mounts routes behind the session and hospital middleware.
func siteEngine(store session.Store, tenants *fakeTenants, routes func(g *gin.RouterGroup)) *gin.Engine {
	e := gin.New()
	e.Use(RequestID())
	g := e.Group("", Session(store, testSessionConfig), Hospital(newHospitalService(tenants), "hospital"))
	routes(g)
	return e
}

func do(e http.Handler, method, url string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return serve(e, req)
}

func serve(e http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == testSessionConfig.CookieName {
			return c
		}
	}
	require.FailNow(t, "no session cookie in response")
	return nil
}

func seedSession(t *testing.T, store session.Store, id string, values map[string]string) *http.Cookie {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), id, values, time.Hour))
	return &http.Cookie{Name: testSessionConfig.CookieName, Value: id}
}
