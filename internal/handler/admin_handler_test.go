package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deliverydesk/alert-engine/internal/analytics"
	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
)

type fakeEngine struct {
	prefs      domain.PreferenceSet
	dismissed  []string
	read       []string
	clicked    []string
	dismissErr error
	subErr     error
	testSent   bool
	signaled   bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{prefs: domain.DefaultPreferences()}
}

func (f *fakeEngine) GetPreferences() domain.PreferenceSet { return f.prefs }

func (f *fakeEngine) SetPreferences(ctx context.Context, p domain.PreferenceSet) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	f.prefs = p
	return nil
}

func (f *fakeEngine) GetAnalytics() analytics.Snapshot {
	return analytics.Snapshot{
		Categories: map[domain.Category]analytics.CategoryCounters{
			domain.CategoryDelivery: {Sent: 2, Delivered: 1, DeliveryRate: 50},
		},
		Daily: map[string]int64{"2026-03-14": 2},
	}
}

func (f *fakeEngine) Dismiss(ctx context.Context, id string) error {
	if f.dismissErr != nil {
		return f.dismissErr
	}
	f.dismissed = append(f.dismissed, id)
	return nil
}

func (f *fakeEngine) MarkRead(ctx context.Context, id string) error {
	f.read = append(f.read, id)
	return nil
}

func (f *fakeEngine) Clicked(ctx context.Context, id string) error {
	f.clicked = append(f.clicked, id)
	return nil
}

func (f *fakeEngine) RequestPermission(ctx context.Context) error { return f.subErr }

func (f *fakeEngine) Subscribe(ctx context.Context) error { return f.subErr }

func (f *fakeEngine) Unsubscribe(ctx context.Context) error { return nil }

func (f *fakeEngine) SignalDatasetChange() { f.signaled = true }

func (f *fakeEngine) SendTest(ctx context.Context) error {
	f.testSent = true
	return nil
}

func newTestApp(t *testing.T, engine EngineAPI) *fiber.App {
	t.Helper()

	app := fiber.New()
	if err := RegisterAdminRoutes(app, engine); err != nil {
		t.Fatalf("RegisterAdminRoutes() error = %v", err)
	}
	return app
}

func TestAdminHandler_GetPreferences(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, newFakeEngine())

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/preferences", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var prefs domain.PreferenceSet
	if err := json.NewDecoder(resp.Body).Decode(&prefs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !prefs.Categories[domain.CategoryDelivery] {
		t.Fatalf("preferences = %+v, want delivery category enabled by default", prefs)
	}
}

func TestAdminHandler_SetPreferencesValidation(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	app := newTestApp(t, engine)

	body := `{"quietHours":{"enabled":true,"start":"25:00","end":"07:00"}}`
	req := httptest.NewRequest("PUT", "/v1/preferences", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for an invalid quiet hours start", resp.StatusCode)
	}
}

func TestAdminHandler_DismissNotification(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	app := newTestApp(t, engine)

	resp, err := app.Test(httptest.NewRequest("POST", "/v1/notifications/overdue_delivery:D-7/dismiss", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(engine.dismissed) != 1 || engine.dismissed[0] != "overdue_delivery:D-7" {
		t.Fatalf("dismissed = %v, want the path id", engine.dismissed)
	}
}

func TestAdminHandler_DismissLedgerFailureMapsTo503(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.dismissErr = domain.ErrLedgerWrite
	app := newTestApp(t, engine)

	resp, err := app.Test(httptest.NewRequest("POST", "/v1/notifications/x:1/dismiss", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 for a ledger write failure", resp.StatusCode)
	}
}

func TestAdminHandler_SubscriptionErrorsMapToStatus(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.subErr = domain.ErrPermissionDenied
	app := newTestApp(t, engine)

	resp, err := app.Test(httptest.NewRequest("POST", "/v1/subscription/permission", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403 for a denied prompt", resp.StatusCode)
	}

	engine.subErr = domain.ErrSubscriptionFailure
	resp, err = app.Test(httptest.NewRequest("POST", "/v1/subscription", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("status = %d, want 502 for a subscription failure", resp.StatusCode)
	}
}

func TestAdminHandler_AnalyticsAndTest(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	app := newTestApp(t, engine)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/analytics", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	payload, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(payload), "\"deliveryRate\":50") {
		t.Fatalf("analytics payload = %s, want derived delivery rate", payload)
	}

	resp, err = app.Test(httptest.NewRequest("POST", "/v1/test-notification", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if !engine.testSent {
		t.Fatal("SendTest was not invoked")
	}

	resp, err = app.Test(httptest.NewRequest("POST", "/v1/dataset-changed", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if !engine.signaled {
		t.Fatal("SignalDatasetChange was not invoked")
	}
}
