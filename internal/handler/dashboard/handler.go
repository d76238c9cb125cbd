package dashboard

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/megcare/caseflow/internal/handler"
	"github.com/megcare/caseflow/internal/middleware"
	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

// Summarizer counts a principal's visible cases.
type Summarizer interface {
	Summary(ctx context.Context, tenant *model.Tenant, user *model.User) (*model.CaseSummary, error)
}

// Home describes the site the request landed on.
type Home struct {
	Hospital *model.Tenant `json:"hospital,omitempty"`
	MainSite bool          `json:"main_site"`
}

// Dashboard is the landing data for a hospital principal.
type Dashboard struct {
	Role     model.RoleType     `json:"role"`
	Hospital *model.Tenant      `json:"hospital"`
	Cases    *model.CaseSummary `json:"cases"`
}

// SystemDashboard is the landing data for a system-tier principal.
type SystemDashboard struct {
	Hospitals []*model.Tenant `json:"hospitals"`
}

type Handler struct {
	cases   Summarizer
	tenants repository.TenantRepository
}

func NewHandler(cases Summarizer, tenants repository.TenantRepository) *Handler {
	return &Handler{cases: cases, tenants: tenants}
}

// RegisterRoutes mounts the home page on public and the dashboards on
// protected. Every distinct role dashboard route is served.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("/", h.Home)
	protected.GET("/dashboard", h.Redirect)

	seen := make(map[string]bool)
	for _, rt := range model.AllRoleTypes() {
		route := rt.DashboardRoute()
		if seen[route] {
			continue
		}
		seen[route] = true
		protected.GET(route, h.RoleDashboard)
	}
}

// Home renders the landing page, including any notice queued by a
// redirect away from an unusable hospital.
func (h *Handler) Home(c *gin.Context) {
	tenant := middleware.CurrentTenant(c)
	handler.Respond(c, http.StatusOK, Home{Hospital: tenant, MainSite: tenant == nil})
}

// Redirect sends the principal to their role's dashboard.
func (h *Handler) Redirect(c *gin.Context) {
	c.Redirect(http.StatusFound, middleware.CurrentUser(c).RoleType.DashboardRoute())
}

func (h *Handler) RoleDashboard(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if own := user.RoleType.DashboardRoute(); own != c.FullPath() {
		c.Redirect(http.StatusFound, own)
		return
	}

	if user.RoleType.IsSystem() {
		tenants, err := h.tenants.List(c.Request.Context())
		if err != nil {
			handler.Error(c, err)
			return
		}
		handler.Respond(c, http.StatusOK, SystemDashboard{Hospitals: tenants})
		return
	}

	tenant := middleware.CurrentTenant(c)
	summary, err := h.cases.Summary(c.Request.Context(), tenant, user)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, Dashboard{Role: user.RoleType, Hospital: tenant, Cases: summary})
}
