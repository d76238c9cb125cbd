package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/megcare/caseflow/internal/repository"
	"github.com/megcare/caseflow/pkg/logger"
	"github.com/megcare/caseflow/pkg/metrics"
)

// OutboxCleanupWorker purges delivered outbox events after the retention
// window. Case audits are never purged.
type OutboxCleanupWorker struct {
	repo            repository.OutboxRepository
	retention       time.Duration
	cleanupInterval time.Duration
	logger          *logger.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, cleanupInterval time.Duration, log *logger.Logger, m *metrics.Metrics) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:            repo,
		retention:       retention,
		cleanupInterval: cleanupInterval,
		logger:          log,
		metrics:         m,
		now:             time.Now,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Cleanup(ctx); err != nil {
				w.logger.Error(err, "Failed to clean up outbox events")
			}
		}
	}
}

func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) error {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	w.metrics.DatabaseOperation("delete_processed_events", err)
	if err != nil {
		return fmt.Errorf("failed to cleanup outbox events: %w", err)
	}
	if w.metrics != nil {
		w.metrics.OutboxPurged.Add(float64(rows))
	}

	w.logger.Info("Cleaned up processed outbox events", "rows", rows, "cutoff", cutoff)
	return nil
}
