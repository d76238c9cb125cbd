package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	authHandler "github.com/megcare/caseflow/internal/handler/auth"
	casesHandler "github.com/megcare/caseflow/internal/handler/cases"
	"github.com/megcare/caseflow/internal/handler/dashboard"
	"github.com/megcare/caseflow/internal/handler/health"
	"github.com/megcare/caseflow/internal/middleware"
	"github.com/megcare/caseflow/internal/service/hospital"
	"github.com/megcare/caseflow/internal/session"
)

// APIPrefix is where the JSON API is mounted.
const APIPrefix = "/api/v1"

type Router struct {
	engine     *gin.Engine
	auth       *middleware.AuthMiddleware
	hospitals  *hospital.Service
	sessions   session.Store
	authH      *authHandler.Handler
	casesH     *casesHandler.Handler
	dashboardH *dashboard.Handler
	healthH    *health.Handler
	config     RouterConfig
	metrics    *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type RouterConfig struct {
	LoginRate     rate.Limit
	LoginBurst    int
	CORSConfig    middleware.CORSConfig
	Session       middleware.SessionConfig
	OverrideParam string
	Timeout       time.Duration
	MetricsPrefix string
	Registerer    prometheus.Registerer
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	hospitals *hospital.Service,
	sessions session.Store,
	authH *authHandler.Handler,
	casesH *casesHandler.Handler,
	dashboardH *dashboard.Handler,
	healthH *health.Handler,
	config RouterConfig,
) *Router {
	engine := gin.New()

	r := &Router{
		engine:     engine,
		auth:       auth,
		hospitals:  hospitals,
		sessions:   sessions,
		authH:      authH,
		casesH:     casesH,
		dashboardH: dashboardH,
		healthH:    healthH,
		config:     config,
		metrics:    initRouterMetrics(config.MetricsPrefix, config.Registerer),
	}

	// Add core middlewares
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		r.metricsMiddleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.Timeout(config.Timeout, 4*config.Timeout, APIPrefix+"/cases/export"),
		middleware.SizeLimit(middleware.SizeLimitConfig{MaxBodySize: middleware.DefaultMaxBody}),
		middleware.ErrorHandler(),
		middleware.Validation(middleware.DefaultValidationConfig()),
	)

	return r
}

func (r *Router) Setup() {
	// Probes run outside any session or hospital context.
	r.healthH.RegisterRoutes(r.engine.Group(""))

	site := r.engine.Group("",
		middleware.NoStore(),
		middleware.Session(r.sessions, r.config.Session),
		middleware.Hospital(r.hospitals, r.config.OverrideParam),
	)
	api := site.Group(APIPrefix)
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	loginLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  r.config.LoginRate,
		Burst: r.config.LoginBurst,
	})
	public := api.Group("", loginLimiter.RateLimit())

	protectedSite := site.Group("", r.auth.Authenticate())
	protectedAPI := api.Group("", r.auth.Authenticate())

	r.authH.RegisterPages(site)
	r.authH.RegisterRoutes(public, protectedAPI)
	r.dashboardH.RegisterRoutes(site, protectedSite)
	r.casesH.RegisterRoutes(protectedAPI)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Metrics initialization and middleware
func initRouterMetrics(prefix string, reg prometheus.Registerer) *routerMetrics {
	f := promauto.With(reg)
	return &routerMetrics{
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		switch {
		case c.Writer.Status() >= 500:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "server").Inc()
		case c.Writer.Status() >= 400:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "client").Inc()
		}
	}
}
