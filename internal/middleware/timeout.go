package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout puts a deadline on the request context. Store and identity
// provider calls observe it; the handler still runs on the request
// goroutine. Paths under a slow prefix, such as spreadsheet exports, get
// slow instead of d.
func Timeout(d, slow time.Duration, slowPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := d
		for _, p := range slowPrefixes {
			if strings.HasPrefix(c.FullPath(), p) {
				limit = slow
				break
			}
		}
		if limit <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), limit)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
