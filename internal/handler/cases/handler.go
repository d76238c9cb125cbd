package cases

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/megcare/caseflow/internal/handler"
	"github.com/megcare/caseflow/internal/middleware"
	"github.com/megcare/caseflow/internal/model"
	casesvc "github.com/megcare/caseflow/internal/service/cases"
	apperrors "github.com/megcare/caseflow/pkg/errors"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Exporter renders a case listing as a spreadsheet.
type Exporter interface {
	ExportCases(ctx context.Context, tenant *model.Tenant, user *model.User, filter model.CaseFilter) ([]byte, string, error)
}

type Handler struct {
	svc      casesvc.CaseService
	exporter Exporter
}

func NewHandler(svc casesvc.CaseService, exporter Exporter) *Handler {
	return &Handler{svc: svc, exporter: exporter}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cases := r.Group("/cases")
	{
		cases.GET("", h.ListCases)
		cases.POST("", h.CreateCase)
		cases.GET("/export", h.ExportCases)
		cases.GET("/:id", h.GetCase)
		cases.PATCH("/:id", h.UpdateCase)
		cases.DELETE("/:id", h.DeleteCase)
		cases.POST("/:id/assign", h.AssignCase)
		cases.POST("/:id/complete", h.CompleteCase)
		cases.GET("/:id/audit", h.GetAuditTrail)
	}
}

func (h *Handler) ListCases(c *gin.Context) {
	var filter model.CaseFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid filter", err))
		return
	}

	list, err := h.svc.List(c.Request.Context(), middleware.CurrentTenant(c), middleware.CurrentUser(c), filter)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, list)
}

func (h *Handler) GetCase(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	detail, err := h.svc.View(c.Request.Context(), middleware.CurrentTenant(c), middleware.CurrentUser(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, detail)
}

func (h *Handler) CreateCase(c *gin.Context) {
	var req model.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid request", err))
		return
	}

	created, err := h.svc.Create(c.Request.Context(), middleware.CurrentTenant(c), middleware.CurrentUser(c), req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, created)
}

func (h *Handler) UpdateCase(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	var req model.UpdateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid request", err))
		return
	}

	updated, err := h.svc.Update(c.Request.Context(), middleware.CurrentTenant(c), middleware.CurrentUser(c), id, req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, updated)
}

func (h *Handler) AssignCase(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	var req model.AssignCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid request", err))
		return
	}

	assigned, err := h.svc.Assign(c.Request.Context(), middleware.CurrentTenant(c), middleware.CurrentUser(c), id, req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, assigned)
}

func (h *Handler) CompleteCase(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	completed, err := h.svc.Complete(c.Request.Context(), middleware.CurrentTenant(c), middleware.CurrentUser(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, completed)
}

func (h *Handler) DeleteCase(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentTenant(c), middleware.CurrentUser(c), id); err != nil {
		handler.Error(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, "case deleted")
}

func (h *Handler) GetAuditTrail(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	trail, err := h.svc.AuditTrail(c.Request.Context(), middleware.CurrentTenant(c), middleware.CurrentUser(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, trail)
}

func (h *Handler) ExportCases(c *gin.Context) {
	var filter model.CaseFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid filter", err))
		return
	}

	data, name, err := h.exporter.ExportCases(c.Request.Context(), middleware.CurrentTenant(c), middleware.CurrentUser(c), filter)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// caseID parses the :id parameter. Malformed ids answer exactly like
// cases the principal cannot see.
func caseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		handler.Error(c, casesvc.ErrCaseNotFound)
		return 0, false
	}
	return id, true
}
