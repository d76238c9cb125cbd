package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/megcare/caseflow/internal/handler"
)

// DefaultMaxBody bounds case forms and login posts.
const DefaultMaxBody int64 = 1 << 20

// SizeLimitConfig caps request bodies. Only methods that carry a body are
// checked.
type SizeLimitConfig struct {
	MaxBodySize int64
}

// SizeLimit answers 413 for a declared oversize body and wraps the rest in
// a reader that fails once the cap is crossed.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	limit := config.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	tooLarge := handler.NewErrorResponse(fmt.Sprintf("request body exceeds %d bytes", limit))

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
