package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/multipage/pkg/domain"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "multipage"

// Metrics holds the collectors updated by the engine hooks.
type Metrics struct {
	PageVisits         *prometheus.CounterVec
	PageSkips          *prometheus.CounterVec
	TaskDuration       *prometheus.HistogramVec
	TasksInFlight      prometheus.Gauge
	ValidationFailures *prometheus.CounterVec
	SessionsFinished   *prometheus.CounterVec
}

type metricsConfig struct {
	namespace  string
	registerer prometheus.Registerer
}

// MetricsOption configures NewMetrics.
type MetricsOption func(*metricsConfig)

// WithRegisterer registers the collectors on r instead of the default registry.
func WithRegisterer(r prometheus.Registerer) MetricsOption {
	return func(c *metricsConfig) { c.registerer = r }
}

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) MetricsOption {
	return func(c *metricsConfig) { c.namespace = ns }
}

// NewMetrics creates and registers the collectors. It panics when a
// collector with the same name is already registered.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := metricsConfig{
		namespace:  DefaultNamespace,
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Metrics{
		PageVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.namespace,
				Name:      "page_visits_total",
				Help:      "Total number of page entries",
			},
			[]string{"page_id", "reason"},
		),
		PageSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.namespace,
				Name:      "page_skips_total",
				Help:      "Total number of pages skipped by their skip condition",
			},
			[]string{"page_id"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.namespace,
				Name:      "task_duration_seconds",
				Help:      "Duration of task executions",
				Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
			},
			[]string{"kind", "status"},
		),
		TasksInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.namespace,
				Name:      "tasks_in_flight",
				Help:      "Number of tasks currently running",
			},
		),
		ValidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.namespace,
				Name:      "validation_failures_total",
				Help:      "Total number of refused advances",
			},
			[]string{"page_id"},
		),
		SessionsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.namespace,
				Name:      "sessions_finished_total",
				Help:      "Total number of sessions that reached the end of the graph",
			},
			[]string{"page_id"},
		),
	}
	cfg.registerer.MustRegister(
		m.PageVisits,
		m.PageSkips,
		m.TaskDuration,
		m.TasksInFlight,
		m.ValidationFailures,
		m.SessionsFinished,
	)
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPageEnter: func(_ context.Context, e *domain.PageEvent) {
			m.PageVisits.WithLabelValues(e.PageID, e.Reason).Inc()
		},
		OnPageSkip: func(_ context.Context, e *domain.PageEvent) {
			m.PageSkips.WithLabelValues(e.PageID).Inc()
		},
		OnTaskStart: func(context.Context, *domain.TaskEvent) {
			m.TasksInFlight.Inc()
		},
		OnTaskFinish: func(_ context.Context, e *domain.TaskEvent) {
			m.TasksInFlight.Dec()
			status := "unknown"
			if e.Outcome != nil {
				status = string(e.Outcome.Status)
			}
			m.TaskDuration.WithLabelValues(string(e.Kind), status).Observe(e.Duration.Seconds())
		},
		OnValidationFailed: func(_ context.Context, e *domain.ValidationEvent) {
			m.ValidationFailures.WithLabelValues(e.PageID).Inc()
		},
		OnFinish: func(_ context.Context, e *domain.PageEvent) {
			m.SessionsFinished.WithLabelValues(e.PageID).Inc()
		},
	}
}
