package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/handler"
	"github.com/megcare/caseflow/internal/middleware"
	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/service/auth"
	"github.com/megcare/caseflow/internal/session"
	apperrors "github.com/megcare/caseflow/pkg/errors"
)

// LoginOptions tells the client which sign-in methods are available.
type LoginOptions struct {
	Hospital      *model.Tenant `json:"hospital,omitempty"`
	PasswordLogin bool          `json:"password_login"`
	PasswordURL   string        `json:"password_url,omitempty"`
	SSOURL        string        `json:"sso_url,omitempty"`
}

// Principal is the signed-in user together with the hospital in effect.
type Principal struct {
	User      *model.User   `json:"user"`
	Hospital  *model.Tenant `json:"hospital,omitempty"`
	Dashboard string        `json:"dashboard"`
}

type Handler struct {
	svc           *auth.Service
	passwordLogin bool
	federation    bool
	// prefix is where the API routes are mounted, e.g. "/api/v1".
	prefix string
}

func NewHandler(svc *auth.Service, passwordLogin, federation bool, prefix string) *Handler {
	return &Handler{svc: svc, passwordLogin: passwordLogin, federation: federation, prefix: prefix}
}

// RegisterRoutes mounts the sign-in endpoints on public and the principal
// endpoint on protected.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	auth := public.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/oidc/login", h.BeginOIDC)
		auth.GET("/oidc/callback", h.OIDCCallback)
	}
	protected.GET("/auth/me", h.Me)
}

// RegisterPages mounts the login landing routes the role table points at.
func (h *Handler) RegisterPages(r *gin.RouterGroup) {
	r.GET(model.RoleDoctor.LoginRoute(), h.LoginPage)
	r.GET(model.RoleSuper.LoginRoute(), h.LoginPage)
}

func (h *Handler) LoginPage(c *gin.Context) {
	opts := LoginOptions{
		Hospital:      middleware.CurrentTenant(c),
		PasswordLogin: h.passwordLogin,
	}
	if h.passwordLogin {
		opts.PasswordURL = h.prefix + "/auth/login"
	}
	if h.federation {
		opts.SSOURL = h.prefix + "/auth/oidc/login"
	}
	handler.Respond(c, http.StatusOK, opts)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid request", err))
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), middleware.SessionFrom(c), middleware.CurrentTenant(c), req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, resp)
}

func (h *Handler) Logout(c *gin.Context) {
	route := h.svc.Logout(c.Request.Context(), middleware.SessionFrom(c))
	handler.Respond(c, http.StatusOK, gin.H{"redirect": route})
}

// BeginOIDC redirects the browser to the identity provider.
func (h *Handler) BeginOIDC(c *gin.Context) {
	var req model.OIDCLoginRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid request", err))
		return
	}

	target, err := h.svc.BeginFederated(middleware.SessionFrom(c), middleware.CurrentTenant(c), req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	middleware.SetNoStore(c)
	c.Redirect(http.StatusFound, target)
}

// OIDCCallback finishes the federated login and sends the principal to
// their dashboard.
func (h *Handler) OIDCCallback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		log.Warn().
			Str("error", providerErr).
			Str("description", c.Query("error_description")).
			Msg("Identity provider returned an error")
		sess := middleware.SessionFrom(c)
		sess.Delete(session.KeyIdentityStateNonce)
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("identity could not be verified"))
		return
	}

	var req model.OIDCCallbackRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid request", err))
		return
	}

	resp, err := h.svc.CompleteFederated(c.Request.Context(), middleware.SessionFrom(c), middleware.CurrentTenant(c), req)
	if err != nil {
		log.Warn().Err(err).Msg("Federated login rejected")
		handler.Error(c, err)
		return
	}
	middleware.SetNoStore(c)
	c.Redirect(http.StatusFound, resp.Redirect)
}

func (h *Handler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	handler.Respond(c, http.StatusOK, Principal{
		User:      user,
		Hospital:  middleware.CurrentTenant(c),
		Dashboard: user.RoleType.DashboardRoute(),
	})
}
