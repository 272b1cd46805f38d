package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API, pipeline, and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	stageTransitionsTotal    *prometheus.CounterVec
	transitionsRejectedTotal *prometheus.CounterVec
	dispatchOutcomesTotal    *prometheus.CounterVec
	notificationsSentTotal   *prometheus.CounterVec
	notificationsFailedTotal *prometheus.CounterVec
	notificationSendDuration *prometheus.HistogramVec
	workerInflight           *prometheus.GaugeVec
	retryScheduledTotal      *prometheus.CounterVec
	overdueOrders            *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "order_pipeline",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "order_pipeline",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		stageTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "order_pipeline",
				Name:      "stage_transitions_total",
				Help:      "Total number of committed stage transitions by source and target stage.",
			},
			[]string{"from_stage", "to_stage"},
		),
		transitionsRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "order_pipeline",
				Name:      "transitions_rejected_total",
				Help:      "Total number of rejected transition attempts by reason.",
			},
			[]string{"reason"},
		),
		dispatchOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "order_pipeline",
				Name:      "dispatch_outcomes_total",
				Help:      "Per-recipient dispatch decisions by notification type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		notificationsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "order_pipeline",
				Name:      "notifications_sent_total",
				Help:      "Total number of notifications sent successfully.",
			},
			[]string{"method"},
		),
		notificationsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "order_pipeline",
				Name:      "notifications_failed_total",
				Help:      "Total number of notifications that ended in failed state.",
			},
			[]string{"method", "reason"},
		),
		notificationSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "order_pipeline",
				Name:      "notification_send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by delivery method.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"method"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "order_pipeline",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight worker operations grouped by delivery method.",
			},
			[]string{"method"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "order_pipeline",
				Name:      "retry_scheduled_total",
				Help:      "Total number of notifications scheduled for retry.",
			},
			[]string{"method"},
		),
		overdueOrders: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "order_pipeline",
				Name:      "overdue_orders",
				Help:      "Orders currently past their stage threshold, from the last scan, by stage.",
			},
			[]string{"stage"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.stageTransitionsTotal,
		m.transitionsRejectedTotal,
		m.dispatchOutcomesTotal,
		m.notificationsSentTotal,
		m.notificationsFailedTotal,
		m.notificationSendDuration,
		m.workerInflight,
		m.retryScheduledTotal,
		m.overdueOrders,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncStageTransition(fromStage, toStage string) {
	if m == nil {
		return
	}
	m.stageTransitionsTotal.WithLabelValues(normalizeLabel(fromStage), normalizeLabel(toStage)).Inc()
}

func (m *Metrics) IncTransitionRejected(reason string) {
	if m == nil {
		return
	}
	m.transitionsRejectedTotal.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncDispatchOutcome(notificationType, outcome string) {
	if m == nil {
		return
	}
	m.dispatchOutcomesTotal.WithLabelValues(normalizeLabel(notificationType), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncNotificationSent(method string) {
	if m == nil {
		return
	}
	m.notificationsSentTotal.WithLabelValues(normalizeLabel(method)).Inc()
}

func (m *Metrics) IncNotificationFailed(method string, reason string) {
	if m == nil {
		return
	}
	m.notificationsFailedTotal.WithLabelValues(normalizeLabel(method), normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObserveNotificationSendDuration(method string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.notificationSendDuration.WithLabelValues(normalizeLabel(method)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(method string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(method)).Inc()
}

func (m *Metrics) DecWorkerInFlight(method string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(method)).Dec()
}

func (m *Metrics) IncRetryScheduled(method string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeLabel(method)).Inc()
}

func (m *Metrics) SetOverdueOrders(stage string, count int) {
	if m == nil {
		return
	}
	m.overdueOrders.WithLabelValues(normalizeLabel(stage)).Set(float64(count))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
