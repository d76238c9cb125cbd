package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityConfig holds the response headers applied to every page. The
// hospital subdomains share the main domain, so HSTS covers subdomains.
type SecurityConfig struct {
	HSTSMaxAge     int
	FrameOptions   string
	ReferrerPolicy string
	CSP            []string
}

func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTSMaxAge:     365 * 24 * 3600,
		FrameOptions:   "DENY",
		ReferrerPolicy: "strict-origin-when-cross-origin",
		CSP:            []string{"default-src 'self'", "frame-ancestors 'none'", "form-action 'self'"},
	}
}

// SecurityHeaders writes the static headers once per request. HSTS is only
// sent when the client came in over HTTPS.
func SecurityHeaders(config SecurityConfig) gin.HandlerFunc {
	static := http.Header{}
	static.Set("X-Content-Type-Options", "nosniff")
	if config.FrameOptions != "" {
		static.Set("X-Frame-Options", config.FrameOptions)
	}
	if config.ReferrerPolicy != "" {
		static.Set("Referrer-Policy", config.ReferrerPolicy)
	}
	if len(config.CSP) > 0 {
		static.Set("Content-Security-Policy", strings.Join(config.CSP, "; "))
	}
	hsts := ""
	if config.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(config.HSTSMaxAge) + "; includeSubDomains"
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for k, v := range static {
			h[k] = v
		}
		if hsts != "" && IsSecure(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

// IsSecure reports whether the client reached us over HTTPS, directly or
// through a proxy.
func IsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// NoStore marks every response of a group uncacheable. Anything rendered
// for a hospital or a principal goes through it.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		SetNoStore(c)
		c.Next()
	}
}

// SetNoStore writes the no-cache headers on the current response.
func SetNoStore(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}
