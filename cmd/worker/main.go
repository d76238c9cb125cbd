package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/config"
	"github.com/megcare/caseflow/internal/email"
	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository/postgres"
	"github.com/megcare/caseflow/internal/service/notification"
	cleanup "github.com/megcare/caseflow/internal/worker"
	"github.com/megcare/caseflow/pkg/logger"
	"github.com/megcare/caseflow/pkg/messaging/redis"
	"github.com/megcare/caseflow/pkg/metrics"
	"github.com/megcare/caseflow/pkg/worker"
)

const cleanupInterval = time.Hour

func setupHealthCheck(registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/health/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: ":8081", Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health check server failed")
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Pretty)
	workerLog := logger.Component("outbox-worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	repos := postgres.NewRepositories(db)

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics("caseflow", "worker", registry)

	brokerLog := log.With().Str("component", "broker").Logger()
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 2,
	}, &brokerLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	notifier := notification.NewService(repos.Users, repos.Tenants, email.NewSMTPService(cfg.Mail), cfg.Mail.BaseURL, m)

	processor, err := worker.NewOutboxProcessor(repos.Outbox, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		Channel:       cfg.Outbox.Channel,
	}, workerLog, m)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid outbox configuration")
	}
	processor.Handle(model.EventCaseAssigned, notifier.HandleCaseAssigned)

	janitor := cleanup.NewOutboxCleanupWorker(repos.Outbox, cfg.Outbox.Retention, cleanupInterval, logger.Component("outbox-cleanup"), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthSrv := setupHealthCheck(registry)
	go processor.Start(ctx)
	go janitor.Start(ctx)

	log.Info().Str("channel", cfg.Outbox.Channel).Msg("outbox worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health check server forced to shutdown")
	}
	log.Info().Msg("worker exited properly")
}
