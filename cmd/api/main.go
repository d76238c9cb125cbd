package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/megcare/caseflow/internal/config"
	authHandler "github.com/megcare/caseflow/internal/handler/auth"
	casesHandler "github.com/megcare/caseflow/internal/handler/cases"
	"github.com/megcare/caseflow/internal/handler/dashboard"
	"github.com/megcare/caseflow/internal/handler/health"
	"github.com/megcare/caseflow/internal/middleware"
	"github.com/megcare/caseflow/internal/repository/postgres"
	"github.com/megcare/caseflow/internal/router"
	authService "github.com/megcare/caseflow/internal/service/auth"
	casesService "github.com/megcare/caseflow/internal/service/cases"
	"github.com/megcare/caseflow/internal/service/hospital"
	"github.com/megcare/caseflow/internal/service/identity"
	"github.com/megcare/caseflow/internal/service/report"
	"github.com/megcare/caseflow/internal/session"
	"github.com/megcare/caseflow/pkg/circuitbreaker"
	"github.com/megcare/caseflow/pkg/logger"
	"github.com/megcare/caseflow/pkg/metrics"
	"github.com/megcare/caseflow/pkg/security"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(gin.ReleaseMode)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("caseflow", "api", registry)

	// Initialize session store
	var (
		store session.Store
		rdb   *redis.Client
	)
	switch cfg.Session.Store {
	case "redis":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid redis url")
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb, m)
	default:
		store = session.NewMemoryStore(cfg.Session.TTL, 10*time.Minute)
	}

	// Initialize repositories
	repos := postgres.NewRepositories(db)

	// Initialize services
	resolver := hospital.NewResolver(repos.Tenants, hospital.ResolverConfig{
		MainDomain:          cfg.Hospital.MainDomain,
		AllowTenantOverride: cfg.Hospital.AllowTenantOverride,
	})
	hospitalSvc := hospital.NewService(resolver, repos.Tenants, m)

	var federation authService.Federation
	if cfg.OIDC.Enabled {
		federation = identity.NewProvider(
			cfg.OIDC,
			security.NewStateSigner(cfg.OIDC.StateSecret, 10*time.Minute),
			circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
				Name:          "identity-provider",
				Threshold:     5,
				ResetAfter:    time.Minute,
				Cooldown:      30 * time.Second,
				OnStateChange: m.CircuitStateChange,
			}),
		)
	}
	adapter := identity.NewAdapter(repos.Users, repos.Roles, repos.Tenants)
	authSvc := authService.NewService(repos.Users, security.NewBcryptHasher(cfg.Auth.BcryptCost), adapter, federation, m,
		authService.Config{
			PasswordLogin:      cfg.Auth.PasswordLogin,
			RevalidateInterval: cfg.OIDC.RevalidateInterval,
		})
	caseSvc := casesService.NewService(repos.Cases, repos.Assignments, repos.Audits, repos.Users,
		casesService.WithMetrics(m))
	reportSvc := report.NewService(caseSvc)

	// Initialize handlers
	authH := authHandler.NewHandler(authSvc, cfg.Auth.PasswordLogin, cfg.OIDC.Enabled, router.APIPrefix)
	casesH := casesHandler.NewHandler(caseSvc, reportSvc)
	dashboardH := dashboard.NewHandler(caseSvc, repos.Tenants)
	var probeRedis redis.UniversalClient
	if rdb != nil {
		probeRedis = rdb
	}
	healthH := health.NewHandler(db, probeRedis, registry)

	// Setup router
	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		hospitalSvc,
		store,
		authH,
		casesH,
		dashboardH,
		healthH,
		router.RouterConfig{
			LoginRate:  rate.Limit(cfg.Auth.LoginRate),
			LoginBurst: cfg.Auth.LoginBurst,
			CORSConfig: middleware.DefaultCORSConfig(cfg.Hospital.MainDomain),
			Session: middleware.SessionConfig{
				CookieName:   cfg.Session.CookieName,
				CookieDomain: cfg.Session.CookieDomain,
				Secure:       cfg.Session.Secure,
				TTL:          cfg.Session.TTL,
			},
			OverrideParam: cfg.Hospital.OverrideParam,
			Timeout:       time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			MetricsPrefix: "caseflow_http",
			Registerer:    registry,
		},
	)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("main_domain", cfg.Hospital.MainDomain).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
