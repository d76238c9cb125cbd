package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/megcare/caseflow/pkg/circuitbreaker"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec
	OutboxPurged            prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec

	// Domain metrics
	TenantRedirects       *prometheus.CounterVec
	CaseTransitions       *prometheus.CounterVec
	IdentityRevalidations *prometheus.CounterVec
	Notifications         *prometheus.CounterVec
	CircuitTransitions    *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them with reg.
func NewMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Outbox metrics
		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),
		OutboxPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_purged_total",
			Help:      "Total number of processed outbox events removed after retention",
		}),

		// Database metrics
		DatabaseOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),

		// Redis metrics
		RedisOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),

		TenantRedirects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tenant_redirects_total",
			Help:      "Requests redirected away from a hospital context",
		}, []string{"reason"}),
		CaseTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "case_transitions_total",
			Help:      "Case status field changes",
		}, []string{"field", "to"}),
		IdentityRevalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "identity_revalidations_total",
			Help:      "Periodic identity provider token checks by outcome",
		}, []string{"outcome"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_total",
			Help:      "Assignment notifications by outcome",
		}, []string{"status"}),
		CircuitTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state changes",
		}, []string{"breaker", "from", "to"}),
	}
}

func (m *Metrics) TenantRedirect(reason string) {
	if m == nil {
		return
	}
	m.TenantRedirects.WithLabelValues(reason).Inc()
}

func (m *Metrics) CaseTransition(field, to string) {
	if m == nil {
		return
	}
	m.CaseTransitions.WithLabelValues(field, to).Inc()
}

func (m *Metrics) IdentityRevalidation(outcome string) {
	if m == nil {
		return
	}
	m.IdentityRevalidations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Notification(status string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(status).Inc()
}

func (m *Metrics) RedisOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.RedisOperations.WithLabelValues(operation, outcome(err)).Inc()
}

func (m *Metrics) DatabaseOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.DatabaseOperations.WithLabelValues(operation, outcome(err)).Inc()
}

// CircuitStateChange matches circuitbreaker.Settings.OnStateChange.
func (m *Metrics) CircuitStateChange(name string, from, to circuitbreaker.State) {
	if m == nil {
		return
	}
	m.CircuitTransitions.WithLabelValues(name, string(from), string(to)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
