package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/handler"
	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/service/hospital"
	apperrors "github.com/megcare/caseflow/pkg/errors"
)

// Hospital establishes the request's hospital context. An unusable
// hospital ends the request with a redirect to the main site; the notice
// explaining it is shown by the next request.
func Hospital(svc *hospital.Service, overrideParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFrom(c)
		if sess == nil {
			log.Error().Msg("Hospital middleware installed without a session")
			c.AbortWithStatusJSON(http.StatusInternalServerError, handler.NewErrorResponse(apperrors.GenericMessage))
			return
		}

		req := hospital.Request{
			Host:   c.Request.Host,
			Secure: IsSecure(c.Request),
		}
		if overrideParam != "" {
			req.Override = c.Query(overrideParam)
		}

		result, err := svc.Establish(c.Request.Context(), sess, req)
		if err != nil {
			log.Error().Err(err).Str("host", req.Host).Str("request_id", c.GetString(ContextRequestID)).Msg("Failed to establish hospital context")
			c.AbortWithStatusJSON(http.StatusInternalServerError, handler.NewErrorResponse(apperrors.GenericMessage))
			return
		}

		if result.RedirectURL != "" {
			SetNoStore(c)
			c.Redirect(http.StatusFound, result.RedirectURL)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(hospital.WithTenant(c.Request.Context(), result.Tenant))
		if result.Notice != nil {
			c.Set(handler.ContextNotice, result.Notice)
		}
		c.Next()
	}
}

// CurrentTenant returns the hospital established for the request, or nil
// on the main site.
func CurrentTenant(c *gin.Context) *model.Tenant {
	return hospital.FromContext(c.Request.Context())
}
