package cases

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megcare/caseflow/internal/middleware"
	"github.com/megcare/caseflow/internal/model"
	casesvc "github.com/megcare/caseflow/internal/service/cases"
	"github.com/megcare/caseflow/internal/service/hospital"
)

type fakeCases struct {
	casesvc.CaseService
	viewErr   error
	created   *model.CreateCaseRequest
	completed []int64
	filter    model.CaseFilter
}

func (f *fakeCases) View(_ context.Context, _ *model.Tenant, _ *model.User, id int64) (*model.CaseDetail, error) {
	if f.viewErr != nil {
		return nil, f.viewErr
	}
	return &model.CaseDetail{Case: &model.Case{Base: model.Base{ID: id}, Priority: model.PriorityHigh}}, nil
}

func (f *fakeCases) List(_ context.Context, _ *model.Tenant, _ *model.User, filter model.CaseFilter) ([]*model.Case, error) {
	f.filter = filter
	return []*model.Case{{Base: model.Base{ID: 1}}}, nil
}

func (f *fakeCases) Create(_ context.Context, tenant *model.Tenant, user *model.User, req model.CreateCaseRequest) (*model.Case, error) {
	f.created = &req
	return &model.Case{Base: model.Base{ID: 42}, HospitalID: tenant.ID, CreatedBy: user.ID, Priority: req.Priority}, nil
}

func (f *fakeCases) Complete(_ context.Context, _ *model.Tenant, _ *model.User, id int64) (*model.Case, error) {
	f.completed = append(f.completed, id)
	if id == 9 {
		return nil, casesvc.ErrAlreadyCompleted
	}
	return &model.Case{Base: model.Base{ID: id}}, nil
}

type fakeExporter struct{}

func (fakeExporter) ExportCases(context.Context, *model.Tenant, *model.User, model.CaseFilter) ([]byte, string, error) {
	return []byte("PK"), "cases-hospital1.xlsx", nil
}

func newTestEngine(svc casesvc.CaseService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(middleware.ErrorHandler(), middleware.Validation(middleware.DefaultValidationConfig()))

	tenant := &model.Tenant{Base: model.Base{ID: 1}, Subdomain: "hospital1", Status: model.TenantStatusActive}
	user := &model.User{Base: model.Base{ID: 7}, RoleType: model.RoleTechnician, HospitalID: 1, Status: model.UserStatusActive}
	e.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(hospital.WithTenant(c.Request.Context(), tenant))
		c.Set(middleware.ContextUser, user)
		c.Next()
	})

	NewHandler(svc, fakeExporter{}).RegisterRoutes(e.Group("/api/v1"))
	return e
}

func request(e http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetCase_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "found", path: "/api/v1/cases/5", wantCode: http.StatusOK, wantBody: `"priority":"high"`},
		{name: "not visible", path: "/api/v1/cases/5", err: casesvc.ErrCaseNotFound, wantCode: http.StatusNotFound, wantBody: "case not found"},
		{name: "malformed id", path: "/api/v1/cases/abc", wantCode: http.StatusNotFound, wantBody: "case not found"},
		{name: "negative id", path: "/api/v1/cases/-3", wantCode: http.StatusNotFound, wantBody: "case not found"},
		{name: "forbidden", path: "/api/v1/cases/5", err: casesvc.ErrActionForbidden, wantCode: http.StatusForbidden, wantBody: "permission denied"},
		{name: "store failure", path: "/api/v1/cases/5", err: errors.New("pq: connection reset"), wantCode: http.StatusInternalServerError, wantBody: "something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(newTestEngine(&fakeCases{viewErr: tt.err}), http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotContains(t, rec.Body.String(), "pq:")
		})
	}
}

func TestCreateCase(t *testing.T) {
	svc := &fakeCases{}
	rec := request(newTestEngine(svc), http.MethodPost, "/api/v1/cases", `{"patient_id":11,"priority":"urgent","notes":"stat"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.created)
	assert.Equal(t, int64(11), svc.created.PatientID)
	assert.Contains(t, rec.Body.String(), `"id":42`)
	assert.Contains(t, rec.Body.String(), `"created_by":7`)
}

func TestCreateCase_ValidationFailure(t *testing.T) {
	svc := &fakeCases{}
	rec := request(newTestEngine(svc), http.MethodPost, "/api/v1/cases", `{"patient_id":0,"priority":"someday"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"priority"`)
	assert.Contains(t, rec.Body.String(), `"field":"patient_id"`)
	assert.Nil(t, svc.created)
}

func TestCompleteCase(t *testing.T) {
	svc := &fakeCases{}
	e := newTestEngine(svc)

	rec := request(e, http.MethodPost, "/api/v1/cases/3/complete", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(e, http.MethodPost, "/api/v1/cases/9/complete", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already completed")
	assert.Equal(t, []int64{3, 9}, svc.completed)
}

func TestListCases_BindsFilter(t *testing.T) {
	svc := &fakeCases{}
	rec := request(newTestEngine(svc), http.MethodGet, "/api/v1/cases?status=assigned&priority=low&page=2", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.CaseStatusAssigned, svc.filter.Status)
	assert.Equal(t, "low", svc.filter.Priority)
	assert.Equal(t, 2, svc.filter.Page)
}

func TestExportCases(t *testing.T) {
	rec := request(newTestEngine(&fakeCases{}), http.MethodGet, "/api/v1/cases/export", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="cases-hospital1.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK", rec.Body.String())
}
