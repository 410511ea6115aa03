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

// Metrics stores Prometheus collectors used by the engine and the admin server.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	candidatesTotal       *prometheus.CounterVec
	deliveriesTotal       *prometheus.CounterVec
	deliveryAttemptsTotal prometheus.Counter
	deliveryDuration      prometheus.Histogram
	feedEventsTotal       *prometheus.CounterVec
	feedReconnectsTotal   prometheus.Counter
	batchesCollapsedTotal prometheus.Counter
	analyticsEventsTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alert_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "alert_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		candidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alert_engine",
				Name:      "candidates_total",
				Help:      "Total synthesized candidates by source path and gating outcome.",
			},
			[]string{"source", "outcome"},
		),
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alert_engine",
				Name:      "deliveries_total",
				Help:      "Total delivery outcomes by result.",
			},
			[]string{"result"},
		),
		deliveryAttemptsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "alert_engine",
				Name:      "delivery_attempts_total",
				Help:      "Total individual display attempts including retries.",
			},
		),
		deliveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "alert_engine",
				Name:      "delivery_duration_seconds",
				Help:      "End-to-end Deliver call duration in seconds including retries.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		feedEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alert_engine",
				Name:      "feed_events_total",
				Help:      "Total change-feed events consumed by operation.",
			},
			[]string{"op"},
		),
		feedReconnectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "alert_engine",
				Name:      "feed_reconnects_total",
				Help:      "Total change-feed reconnect attempts.",
			},
		),
		batchesCollapsedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "alert_engine",
				Name:      "batches_collapsed_total",
				Help:      "Total bursts collapsed into one summary notification.",
			},
		),
		analyticsEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alert_engine",
				Name:      "analytics_events_total",
				Help:      "Mirror of analytics counters by category and event.",
			},
			[]string{"category", "event"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.candidatesTotal,
		m.deliveriesTotal,
		m.deliveryAttemptsTotal,
		m.deliveryDuration,
		m.feedEventsTotal,
		m.feedReconnectsTotal,
		m.batchesCollapsedTotal,
		m.analyticsEventsTotal,
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

func (m *Metrics) IncCandidate(source string, outcome string) {
	if m == nil {
		return
	}
	m.candidatesTotal.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncDelivery(result string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncDeliveryAttempt() {
	if m == nil {
		return
	}
	m.deliveryAttemptsTotal.Inc()
}

func (m *Metrics) ObserveDeliveryDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.deliveryDuration.Observe(seconds)
}

func (m *Metrics) IncFeedEvent(op string) {
	if m == nil {
		return
	}
	m.feedEventsTotal.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *Metrics) IncFeedReconnect() {
	if m == nil {
		return
	}
	m.feedReconnectsTotal.Inc()
}

func (m *Metrics) IncBatchCollapsed() {
	if m == nil {
		return
	}
	m.batchesCollapsedTotal.Inc()
}

func (m *Metrics) IncAnalyticsEvent(category string, event string) {
	if m == nil {
		return
	}
	m.analyticsEventsTotal.WithLabelValues(normalizeLabel(category), normalizeLabel(event)).Inc()
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

func normalizeLabel(label string) string {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
