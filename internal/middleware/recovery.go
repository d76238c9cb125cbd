package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/handler"
	apperrors "github.com/megcare/caseflow/pkg/errors"
)

// Recovery turns a panic into a generic 500. The panic value and stack are
// logged, never sent.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestFields(c, log.Error()).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("Recovered from panic")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, handler.NewErrorResponse(apperrors.GenericMessage))
		}()
		c.Next()
	}
}

// ErrorHandler renders the last error a handler attached with c.Error,
// unless a response was already written. Every attached error is logged.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		for _, e := range c.Errors {
			requestFields(c, log.Warn()).Err(e.Err).Msg("Handler error")
		}
		if c.Writer.Written() {
			return
		}

		appErr := handler.Translate(c.Errors.Last().Err)
		c.JSON(apperrors.HTTPStatus(appErr), handler.NewErrorResponse(apperrors.PublicMessage(appErr)))
	}
}
