package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsPipelineCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncCandidate("feed", "accepted")
	metrics.IncCandidate("snapshot", "Gated")
	metrics.IncDelivery("delivered")
	metrics.IncDeliveryAttempt()
	metrics.ObserveDeliveryDuration(120 * time.Millisecond)
	metrics.IncFeedEvent("insert")
	metrics.IncFeedReconnect()
	metrics.IncBatchCollapsed()
	metrics.IncAnalyticsEvent("DELIVERY", "sent")

	if got := testutil.ToFloat64(metrics.candidatesTotal.WithLabelValues("feed", "accepted")); got != 1 {
		t.Fatalf("candidates_total{feed,accepted} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.candidatesTotal.WithLabelValues("snapshot", "gated")); got != 1 {
		t.Fatalf("candidates_total{snapshot,gated} = %v, want 1 (labels are normalized)", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("delivered")); got != 1 {
		t.Fatalf("deliveries_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveryAttemptsTotal); got != 1 {
		t.Fatalf("delivery_attempts_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.feedEventsTotal.WithLabelValues("insert")); got != 1 {
		t.Fatalf("feed_events_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.feedReconnectsTotal); got != 1 {
		t.Fatalf("feed_reconnects_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.batchesCollapsedTotal); got != 1 {
		t.Fatalf("batches_collapsed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.analyticsEventsTotal.WithLabelValues("delivery", "sent")); got != 1 {
		t.Fatalf("analytics_events_total = %v, want 1", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncCandidate("feed", "accepted")
	metrics.IncDelivery("delivered")
	metrics.IncDeliveryAttempt()
	metrics.ObserveDeliveryDuration(time.Second)
	metrics.IncFeedEvent("insert")
	metrics.IncFeedReconnect()
	metrics.IncBatchCollapsed()
	metrics.IncAnalyticsEvent("DELIVERY", "sent")
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
