package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/handler"
	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/service/auth"
	apperrors "github.com/megcare/caseflow/pkg/errors"
)

const ContextUser = "user"

type AuthMiddleware struct {
	authService *auth.Service
}

func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate loads the session's principal, re-checks a federated login
// with the identity provider when due and makes sure the principal may act
// in the request's hospital.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFrom(c)
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("authentication required"))
			return
		}
		ctx := c.Request.Context()

		user, err := m.authService.Principal(ctx, sess)
		if errors.Is(err, auth.ErrNotAuthenticated) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("authentication required"))
			return
		}
		if err != nil {
			log.Error().Err(err).Str("request_id", c.GetString(ContextRequestID)).Msg("Failed to load principal")
			c.AbortWithStatusJSON(http.StatusInternalServerError, handler.NewErrorResponse(apperrors.GenericMessage))
			return
		}

		if err := m.authService.Revalidate(ctx, sess); err != nil {
			if errors.Is(err, auth.ErrSessionRevoked) {
				log.Info().Int64("user_id", user.ID).Msg("Session revoked by identity provider")
				SetNoStore(c)
				c.Redirect(http.StatusFound, user.RoleType.LoginRoute())
				c.Abort()
				return
			}
			log.Warn().Err(err).Int64("user_id", user.ID).Msg("Identity revalidation failed, keeping session")
		}

		if !user.IsActive() {
			c.AbortWithStatusJSON(http.StatusForbidden, handler.NewErrorResponse("account is inactive"))
			return
		}

		tenant := CurrentTenant(c)
		if !user.RoleType.IsSystem() && !user.BelongsTo(tenant) {
			c.AbortWithStatusJSON(http.StatusForbidden, handler.NewErrorResponse("access to this hospital is not permitted"))
			return
		}

		c.Set(ContextUser, user)
		c.Next()
	}
}

// RequireSystem admits only system-tier principals.
func (m *AuthMiddleware) RequireSystem() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.RoleType.IsSystem() {
			c.AbortWithStatusJSON(http.StatusForbidden, handler.NewErrorResponse("permission denied"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the principal set by Authenticate.
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(ContextUser); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}
