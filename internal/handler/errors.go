package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/service/auth"
	"github.com/megcare/caseflow/internal/service/cases"
	"github.com/megcare/caseflow/internal/service/identity"
	apperrors "github.com/megcare/caseflow/pkg/errors"
	"github.com/megcare/caseflow/pkg/security"
)

// Translate maps a domain error onto the AppError shown to the client.
// Anything unrecognised becomes an internal error.
func Translate(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, cases.ErrCaseNotFound):
		return apperrors.NotFound("case", err)
	case errors.Is(err, cases.ErrActionForbidden):
		return apperrors.Forbidden("permission denied", err)
	case errors.Is(err, cases.ErrHospitalRequired):
		return apperrors.Forbidden("a hospital context is required", err)
	case errors.Is(err, cases.ErrAlreadyCompleted):
		return apperrors.Conflict("case is already completed", err)
	case errors.Is(err, cases.ErrCaseClosed):
		return apperrors.Conflict("case is closed", err)
	case errors.Is(err, cases.ErrInvalidAssignee):
		return apperrors.BadRequest("assignee cannot take this case", err)
	case errors.Is(err, cases.ErrInvalidPriority):
		return apperrors.BadRequest("invalid priority", err)
	case errors.Is(err, cases.ErrInvalidStatus):
		return apperrors.BadRequest("invalid status", err)

	case errors.Is(err, model.ErrInvalidCredentials):
		return apperrors.Unauthenticated("invalid credentials", err)
	case errors.Is(err, auth.ErrNotAuthenticated):
		return apperrors.Unauthorized(err)
	case errors.Is(err, model.ErrUserInactive):
		return apperrors.Forbidden("account is inactive", err)
	case errors.Is(err, auth.ErrWrongHospital):
		return apperrors.Forbidden("account belongs to another hospital", err)
	case errors.Is(err, auth.ErrPasswordLoginOff):
		return apperrors.Forbidden("password login is disabled", err)
	case errors.Is(err, auth.ErrFederationOff):
		return apperrors.NotFound("single sign-on", err)

	case errors.Is(err, identity.ErrRoleUnsupported):
		return apperrors.Forbidden("role is not supported", err)
	case errors.Is(err, identity.ErrHospitalContextRequired):
		return apperrors.BadRequest("sign in from your hospital's address", err)
	case errors.Is(err, identity.ErrProviderUnreachable):
		return apperrors.Unavailable("identity provider is unavailable, please try again later", err)
	case errors.Is(err, identity.ErrTokenInvalid),
		errors.Is(err, identity.ErrProviderRejected),
		errors.Is(err, identity.ErrMissingEmail),
		errors.Is(err, security.ErrInvalidState):
		return apperrors.Unauthenticated("identity could not be verified", err)
	}
	return apperrors.Internal(err)
}

// Error writes err as an error response. Internal errors are logged with
// the request's context and shown as the generic message.
func Error(c *gin.Context, err error) {
	appErr := Translate(err)
	if apperrors.IsInternal(appErr) {
		evt := log.Error().Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path)
		if id := c.Param("id"); id != "" {
			evt = evt.Str("case_id", id)
		}
		evt.Msg("Request failed")
	}
	c.JSON(apperrors.HTTPStatus(appErr), NewErrorResponse(apperrors.PublicMessage(appErr)))
}
