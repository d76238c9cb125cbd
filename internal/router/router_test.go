package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authHandler "github.com/megcare/caseflow/internal/handler/auth"
	casesHandler "github.com/megcare/caseflow/internal/handler/cases"
	"github.com/megcare/caseflow/internal/handler/dashboard"
	"github.com/megcare/caseflow/internal/handler/health"
	"github.com/megcare/caseflow/internal/middleware"
	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
	"github.com/megcare/caseflow/internal/service/auth"
	casesvc "github.com/megcare/caseflow/internal/service/cases"
	"github.com/megcare/caseflow/internal/service/hospital"
	"github.com/megcare/caseflow/internal/session"
)

type fakeTenants struct {
	repository.TenantRepository
}

var hospital1 = &model.Tenant{Base: model.Base{ID: 1}, Name: "Hospital One", Subdomain: "hospital1", Status: model.TenantStatusActive}

func (fakeTenants) GetBySubdomain(_ context.Context, sub string) (*model.Tenant, error) {
	if sub == hospital1.Subdomain {
		cp := *hospital1
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (fakeTenants) Get(_ context.Context, id int64) (*model.Tenant, error) {
	if id == hospital1.ID {
		cp := *hospital1
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

type fakeUsers struct {
	repository.UserRepository
}

type fakeCases struct {
	casesvc.CaseService
}

func newTestRouter(t *testing.T) (*Router, *prometheus.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tenants := fakeTenants{}
	hospitals := hospital.NewService(hospital.NewResolver(tenants, hospital.ResolverConfig{MainDomain: "meg.www"}), tenants, nil)
	authSvc := auth.NewService(fakeUsers{}, nil, nil, nil, nil, auth.Config{PasswordLogin: true})
	reg := prometheus.NewRegistry()

	r := NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		hospitals,
		session.NewMemoryStore(time.Hour, time.Minute),
		authHandler.NewHandler(authSvc, true, false, APIPrefix),
		casesHandler.NewHandler(fakeCases{}, nil),
		dashboard.NewHandler(fakeCases{}, tenants),
		health.NewHandler(sqlx.NewDb(db, "postgres"), nil, reg),
		RouterConfig{
			LoginRate:     1,
			LoginBurst:    5,
			CORSConfig:    middleware.DefaultCORSConfig("meg.www"),
			Session:       middleware.SessionConfig{CookieName: "caseflow_session", CookieDomain: ".meg.www", TTL: time.Hour},
			OverrideParam: "hospital",
			Timeout:       5 * time.Second,
			MetricsPrefix: "caseflow_api",
			Registerer:    reg,
		},
	)
	r.Setup()
	return r, reg
}

func get(r *Router, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestRouter(t *testing.T) {
	r, reg := newTestRouter(t)

	tests := []struct {
		name         string
		url          string
		wantCode     int
		wantLocation string
	}{
		{name: "liveness", url: "http://meg.www/health/live", wantCode: http.StatusOK},
		{name: "main site home", url: "http://meg.www/", wantCode: http.StatusOK},
		{name: "hospital home", url: "http://hospital1.meg.www/", wantCode: http.StatusOK},
		{name: "login page", url: "http://hospital1.meg.www/login", wantCode: http.StatusOK},
		{name: "cases need a principal", url: "http://hospital1.meg.www/api/v1/cases", wantCode: http.StatusUnauthorized},
		{name: "dashboard needs a principal", url: "http://hospital1.meg.www/doctor/dashboard", wantCode: http.StatusUnauthorized},
		{name: "unknown hospital", url: "http://nowhere.meg.www/api/v1/cases", wantCode: http.StatusFound, wantLocation: "http://meg.www"},
		{name: "unknown route", url: "http://meg.www/nope", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(r, tt.url)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(middleware.HeaderXRequestID))
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
		})
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.requestTotal.WithLabelValues(http.MethodGet, "/api/v1/cases", "401")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.requestTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Positive(t, testutil.CollectAndCount(reg, "caseflow_api_request_duration_seconds"))
}
