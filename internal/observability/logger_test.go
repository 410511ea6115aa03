package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_LevelMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
	}{
		{name: "debug level", level: "debug", debugEnabled: true},
		{name: "info level", level: "info", debugEnabled: false},
		{name: "empty level defaults to info", level: "", debugEnabled: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if logger == nil {
				t.Fatal("logger should not be nil")
			}

			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled=%v, want=%v", got, tc.debugEnabled)
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("not-a-level")
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
	if logger != nil {
		t.Fatal("expected nil logger for invalid level")
	}
}

func TestNotificationID_ContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := WithNotificationID(context.Background(), "overdue_delivery:D-7")
	notificationID, ok := NotificationIDFromContext(ctx)
	if !ok {
		t.Fatal("expected notification id to exist")
	}
	if notificationID != "overdue_delivery:D-7" {
		t.Fatalf("notification id=%q, want=%q", notificationID, "overdue_delivery:D-7")
	}
}

func TestNotificationID_MissingValue(t *testing.T) {
	t.Parallel()

	_, ok := NotificationIDFromContext(context.Background())
	if ok {
		t.Fatal("expected notification id to be missing")
	}
}

func TestWithContextLogger(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	ctx := WithNotificationID(context.Background(), "delivery_completed:D-100")
	loggerWithContext := WithContextLogger(baseLogger, ctx)
	loggerWithContext.Info("message with notification id")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}

	if got := entries[0].ContextMap()["notificationId"]; got != "delivery_completed:D-100" {
		t.Fatalf("notificationId=%v, want=%q", got, "delivery_completed:D-100")
	}
}

func TestWithContextLogger_NoNotificationID(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	loggerWithContext := WithContextLogger(baseLogger, context.Background())
	loggerWithContext.Info("message without notification id")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}

	if _, ok := entries[0].ContextMap()["notificationId"]; ok {
		t.Fatal("expected notificationId field to be absent")
	}
}

func TestWithContextLogger_NilLogger(t *testing.T) {
	t.Parallel()

	if got := WithContextLogger(nil, context.Background()); got != nil {
		t.Fatal("expected nil logger")
	}
}
