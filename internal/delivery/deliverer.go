package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/deliverydesk/alert-engine/internal/observability"
	"github.com/deliverydesk/alert-engine/internal/push"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultMaxAttempts = 3
	defaultBaseBackoff = time.Second
	defaultBackoffCap  = 5 * time.Second
	defaultRatePerSec  = 10
	defaultRateBurst   = 5
)

// RetryPolicy bounds how hard a single notification is pushed at the display
// surface before giving up.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	BackoffCap  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		BaseBackoff: defaultBaseBackoff,
		BackoffCap:  defaultBackoffCap,
	}
}

// Backoff returns the sleep after the given failed attempt (1-based):
// base, 2*base, 4*base and so on, capped at BackoffCap.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseBackoff << (attempt - 1)
	if p.BackoffCap > 0 && delay > p.BackoffCap {
		delay = p.BackoffCap
	}
	return delay
}

// AttemptReporter receives per-attempt and final-outcome signals so analytics
// can count them without the deliverer knowing how they are stored.
type AttemptReporter interface {
	RecordAttempt(ctx context.Context, n domain.Notification, attempt int, err error)
	RecordOutcome(ctx context.Context, n domain.Notification, delivered bool)
}

// Deliverer pushes a notification through the display surface with bounded
// retries. Throughput across notifications is smoothed by a token bucket so
// a burst that survives batching cannot flood the platform.
type Deliverer struct {
	displayer push.Displayer
	reporter  AttemptReporter
	policy    RetryPolicy
	limiter   *rate.Limiter
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewDeliverer(
	displayer push.Displayer,
	reporter AttemptReporter,
	policy RetryPolicy,
	ratePerSec float64,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Deliverer, error) {
	if displayer == nil {
		return nil, fmt.Errorf("displayer is required")
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = defaultMaxAttempts
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = defaultBaseBackoff
	}
	if policy.BackoffCap <= 0 {
		policy.BackoffCap = defaultBackoffCap
	}
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Deliverer{
		displayer: displayer,
		reporter:  reporter,
		policy:    policy,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), defaultRateBurst),
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
		sleep:     sleepContext,
	}, nil
}

// Deliver attempts the display up to MaxAttempts times, sleeping the policy
// backoff after each failure. Cancellation lets the in-flight attempt finish
// but schedules no further ones. All attempts failing yields a terminal
// delivery error.
func (d *Deliverer) Deliver(ctx context.Context, n domain.Notification) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throughput limiter: %w", err)
	}

	start := d.now()
	var lastErr error

	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		if d.metrics != nil {
			d.metrics.IncDeliveryAttempt()
		}

		lastErr = d.displayer.Display(ctx, n)
		if d.reporter != nil {
			d.reporter.RecordAttempt(ctx, n, attempt, lastErr)
		}
		if lastErr == nil {
			if d.reporter != nil {
				d.reporter.RecordOutcome(ctx, n, true)
			}
			if d.metrics != nil {
				d.metrics.IncDelivery("delivered")
				d.metrics.ObserveDeliveryDuration(d.now().Sub(start))
			}
			return nil
		}

		d.logger.Warn("display attempt failed",
			zap.String("notificationId", n.ID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		if !push.IsTransient(lastErr) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if err := d.sleep(ctx, d.policy.Backoff(attempt)); err != nil {
			break
		}
	}

	if d.reporter != nil {
		d.reporter.RecordOutcome(ctx, n, false)
	}
	if d.metrics != nil {
		d.metrics.IncDelivery("failed")
		d.metrics.ObserveDeliveryDuration(d.now().Sub(start))
	}

	return fmt.Errorf("%w: %s: %v", domain.ErrDeliveryFailure, n.ID, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
