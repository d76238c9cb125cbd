package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
	"github.com/megcare/caseflow/pkg/logger"
	"github.com/megcare/caseflow/pkg/messaging"
	"github.com/megcare/caseflow/pkg/metrics"
)

// maxBackoff caps the delay before an event is claimed again.
const maxBackoff = time.Hour

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts bounds both the in-process publish attempts and the
	// number of times an event is rescheduled before it is marked failed.
	RetryAttempts int
	RetryDelay    time.Duration
	Channel       string
}

func (c OutboxProcessorConfig) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("outbox batch size must be positive")
	case c.PollInterval <= 0:
		return errors.New("outbox poll interval must be positive")
	case c.RetryAttempts <= 0:
		return errors.New("outbox retry attempts must be positive")
	case c.RetryDelay <= 0:
		return errors.New("outbox retry delay must be positive")
	case c.Channel == "":
		return errors.New("outbox channel is required")
	}
	return nil
}

// EventHandler runs after an event has been published. Handler failures are
// logged and do not fail the event.
type EventHandler func(ctx context.Context, event *model.OutboxEvent) error

// OutboxProcessor publishes case events written by the case transactions
// and fans them out to local handlers such as assignment e-mail.
type OutboxProcessor struct {
	repo     repository.OutboxRepository
	broker   messaging.Publisher
	config   OutboxProcessorConfig
	log      *logger.Logger
	metrics  *metrics.Metrics
	handlers map[string][]EventHandler
	now      func() time.Time
}

func NewOutboxProcessor(repo repository.OutboxRepository, broker messaging.Publisher, config OutboxProcessorConfig,
	log *logger.Logger, m *metrics.Metrics) (*OutboxProcessor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &OutboxProcessor{
		repo:     repo,
		broker:   broker,
		config:   config,
		log:      log,
		metrics:  m,
		handlers: make(map[string][]EventHandler),
		now:      time.Now,
	}, nil
}

// Handle registers h for events of eventType.
func (p *OutboxProcessor) Handle(eventType string, h EventHandler) {
	p.handlers[eventType] = append(p.handlers[eventType], h)
}

// Start polls until ctx ends. A batch in flight finishes first.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.log.Info("Outbox processor started", "channel", p.config.Channel, "batch_size", p.config.BatchSize)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("Outbox processor stopped")
			return
		case <-ticker.C:
			if err := p.ProcessBatch(ctx); err != nil {
				p.log.Error(err, "Outbox batch failed")
			}
		}
	}
}

// ProcessBatch claims and delivers one batch of due events. A failing
// event does not stop the rest of the batch.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) error {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
		defer timer.ObserveDuration()
	}

	events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
	p.metrics.DatabaseOperation("get_pending_events", err)
	if err != nil {
		return fmt.Errorf("failed to get pending events: %w", err)
	}

	for _, event := range events {
		if err := p.deliver(ctx, event); err != nil {
			p.eventLog(event).Error(err, "Failed to deliver event", "retry_count", event.RetryCount)
		}
	}
	return nil
}

func (p *OutboxProcessor) deliver(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{
		ID:         event.ID.String(),
		Type:       event.EventType,
		HospitalID: event.HospitalID,
		OccurredAt: event.CreatedAt,
		Payload:    event.Payload,
	}
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, p.config.Channel, msg)
	})
	if err != nil {
		return p.reschedule(ctx, event, err)
	}

	for _, h := range p.handlers[event.EventType] {
		if herr := h(ctx, event); herr != nil {
			p.eventLog(event).Error(herr, "Event handler failed")
		}
	}

	if err := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil, nil); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	if p.metrics != nil {
		p.metrics.OutboxEventsProcessed.Inc()
	}
	return nil
}

// reschedule puts the event back with exponential backoff, or marks it
// failed once its retries are spent. It returns cause.
func (p *OutboxProcessor) reschedule(ctx context.Context, event *model.OutboxEvent, cause error) error {
	reason := cause.Error()
	status := model.OutboxStatusFailed
	var retryAt *time.Time

	if attempt := event.RetryCount + 1; attempt < p.config.RetryAttempts {
		status = model.OutboxStatusPending
		at := p.now().Add(backoff(p.config.RetryDelay, attempt))
		retryAt = &at
		if p.metrics != nil {
			p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		}
	} else if p.metrics != nil {
		p.metrics.OutboxEventsFailed.Inc()
	}

	if err := p.repo.UpdateStatus(ctx, event.ID, status, &reason, retryAt); err != nil {
		p.eventLog(event).Error(err, "Failed to reschedule event")
	}
	return cause
}

func (p *OutboxProcessor) eventLog(event *model.OutboxEvent) *logger.Logger {
	return p.log.With("event_id", event.ID.String(), "event_type", event.EventType, "hospital_id", event.HospitalID)
}

// backoff doubles base per attempt, up to maxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
