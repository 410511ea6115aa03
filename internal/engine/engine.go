package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deliverydesk/alert-engine/internal/analytics"
	"github.com/deliverydesk/alert-engine/internal/batch"
	"github.com/deliverydesk/alert-engine/internal/delivery"
	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/deliverydesk/alert-engine/internal/feed"
	"github.com/deliverydesk/alert-engine/internal/ledger"
	"github.com/deliverydesk/alert-engine/internal/observability"
	"github.com/deliverydesk/alert-engine/internal/prefs"
	"github.com/deliverydesk/alert-engine/internal/ratelimit"
	"github.com/deliverydesk/alert-engine/internal/rules"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	candidateBuffer = 256
	// recentCap bounds the id-to-category map used to attribute Dismiss and
	// Clicked calls that arrive after delivery.
	recentCap = 300

	sourceFeed     = "feed"
	sourceSnapshot = "snapshot"

	outcomeDeduped     = "deduped"
	outcomeGated       = "gated"
	outcomeRateLimited = "rate_limited"
	outcomeAccepted    = "accepted"
)

// Deps carries every collaborator the engine orchestrates.
type Deps struct {
	Prefs      *prefs.Store
	Ledger     *ledger.Ledger
	Limiter    ratelimit.Limiter
	Deliverer  *delivery.Deliverer
	Subscriber *delivery.Subscriber
	Analytics  *analytics.Aggregator
	Consumer   feed.Consumer
	Source     rules.SnapshotSource
	Rules      []rules.Rule

	SnapshotInterval time.Duration
	Logger           *zap.Logger
	Metrics          *observability.Metrics
}

// Engine wires the two synthesis paths through the gating pipeline into the
// delivery subsystem, and exposes the API the surrounding product consumes.
type Engine struct {
	deps    Deps
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	feedCh   chan domain.Notification
	ruleCh   chan domain.Notification
	changeCh chan struct{}

	mu             sync.Mutex
	started        bool
	cancel         context.CancelFunc
	group          *errgroup.Group
	onNotification func(domain.Notification)
	feedErr        error

	recentMu    sync.Mutex
	recent      map[string]domain.Category
	recentOrder []string
}

func New(deps Deps) (*Engine, error) {
	if deps.Prefs == nil {
		return nil, fmt.Errorf("preference store is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if deps.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if deps.Deliverer == nil {
		return nil, fmt.Errorf("deliverer is required")
	}
	if deps.Subscriber == nil {
		return nil, fmt.Errorf("subscriber is required")
	}
	if deps.Analytics == nil {
		return nil, fmt.Errorf("analytics aggregator is required")
	}
	if deps.Consumer == nil {
		return nil, fmt.Errorf("feed consumer is required")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Engine{
		deps:     deps,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		now:      time.Now,
		feedCh:   make(chan domain.Notification, candidateBuffer),
		ruleCh:   make(chan domain.Notification, candidateBuffer),
		changeCh: make(chan struct{}, 1),
		recent:   make(map[string]domain.Category),
	}, nil
}

// Start loads persisted state and launches the background tasks. It returns
// once the tasks are running; delivered notifications are reported through
// onNotification.
func (e *Engine) Start(ctx context.Context, onNotification func(domain.Notification)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := e.deps.Ledger.Load(ctx); err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	if err := e.deps.Prefs.Load(ctx); err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	if err := e.deps.Analytics.Load(ctx); err != nil {
		return fmt.Errorf("load analytics: %w", err)
	}
	if err := e.deps.Subscriber.Restore(ctx); err != nil {
		e.logger.Warn("restore push subscription failed", zap.Error(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	listener, err := feed.NewListener(e.deps.Consumer, e.feedCh, e.logger, e.metrics)
	if err != nil {
		cancel()
		return fmt.Errorf("build feed listener: %w", err)
	}
	evaluator, err := rules.NewEvaluator(e.deps.Source, e.deps.Rules, e.ruleCh, e.deps.SnapshotInterval, e.changeCh, e.logger)
	if err != nil {
		cancel()
		return fmt.Errorf("build snapshot evaluator: %w", err)
	}

	e.onNotification = onNotification
	e.cancel = cancel
	e.group = group
	e.started = true

	group.Go(func() error {
		err := listener.Start(groupCtx)
		if err != nil && errors.Is(err, domain.ErrFeedUnavailable) {
			// A dead feed degrades the engine instead of stopping it; the
			// snapshot path still produces alerts.
			e.mu.Lock()
			e.feedErr = err
			e.mu.Unlock()
			e.logger.Error("change feed gave up reconnecting", zap.Error(err))
			return nil
		}
		return err
	})
	group.Go(func() error {
		return evaluator.Start(groupCtx)
	})
	group.Go(func() error {
		return e.runDeliveryWorker(groupCtx)
	})
	group.Go(func() error {
		return e.deps.Ledger.RunPruner(groupCtx)
	})

	e.logger.Info("notification engine started")
	return nil
}

// Stop cancels the background tasks and waits for them to drain.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	cancel := e.cancel
	group := e.group
	e.started = false
	e.mu.Unlock()

	cancel()
	err := group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	e.logger.Info("notification engine stopped")
	return nil
}

// FeedErr reports, once, a change feed that exhausted its reconnection budget.
func (e *Engine) FeedErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.feedErr
	e.feedErr = nil
	return err
}

type taggedCandidate struct {
	n      domain.Notification
	source string
}

func (e *Engine) runDeliveryWorker(ctx context.Context) error {
	for {
		var first taggedCandidate
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-e.feedCh:
			first = taggedCandidate{n: n, source: sourceFeed}
		case n := <-e.ruleCh:
			first = taggedCandidate{n: n, source: sourceSnapshot}
		}

		cycle := append([]taggedCandidate{first}, e.drainPending()...)
		e.processCycle(ctx, cycle)
	}
}

// drainPending empties whatever both synthesis paths have already queued so
// one cycle sees the full burst and the batcher can collapse it.
func (e *Engine) drainPending() []taggedCandidate {
	var pending []taggedCandidate
	for {
		select {
		case n := <-e.feedCh:
			pending = append(pending, taggedCandidate{n: n, source: sourceFeed})
		case n := <-e.ruleCh:
			pending = append(pending, taggedCandidate{n: n, source: sourceSnapshot})
		default:
			return pending
		}
	}
}

func (e *Engine) processCycle(ctx context.Context, cycle []taggedCandidate) {
	now := e.now()
	preferences := e.deps.Prefs.Get()

	accepted := make([]domain.Notification, 0, len(cycle))
	for _, candidate := range cycle {
		if e.deps.Ledger.IsDismissed(candidate.n.ID) {
			e.countCandidate(candidate.source, outcomeDeduped)
			continue
		}
		if !prefs.ShouldDeliver(candidate.n, preferences, now) {
			e.countCandidate(candidate.source, outcomeGated)
			continue
		}

		allowed, err := e.deps.Limiter.Allow(ctx, candidate.n.GroupTag(), now)
		if err != nil {
			// Fail open: a broken limiter backend must not silence alerts.
			e.logger.Warn("rate limiter check failed",
				zap.String("notificationId", candidate.n.ID),
				zap.Error(err),
			)
			allowed = true
		}
		if !allowed {
			e.countCandidate(candidate.source, outcomeRateLimited)
			continue
		}

		e.countCandidate(candidate.source, outcomeAccepted)
		accepted = append(accepted, candidate.n)
	}

	if len(accepted) == 0 {
		return
	}

	batched := accepted
	if preferences.BatchSimilar {
		batched = batch.Collapse(accepted, now)
		if len(batched) < len(accepted) && e.metrics != nil {
			e.metrics.IncBatchCollapsed()
		}
	}

	for _, n := range batched {
		e.remember(n.ID, n.Category)
		e.deps.Analytics.RecordSent(ctx, n.Category)

		deliverCtx := observability.WithNotificationID(ctx, n.ID)
		if err := e.deps.Deliverer.Deliver(deliverCtx, n); err != nil {
			observability.WithContextLogger(e.logger, deliverCtx).Warn("delivery failed", zap.Error(err))
			continue
		}
		if e.onNotification != nil {
			e.onNotification(n)
		}
	}
}

func (e *Engine) countCandidate(source, outcome string) {
	if e.metrics != nil {
		e.metrics.IncCandidate(source, outcome)
	}
}

func (e *Engine) remember(id string, category domain.Category) {
	e.recentMu.Lock()
	defer e.recentMu.Unlock()

	if _, ok := e.recent[id]; !ok {
		e.recentOrder = append(e.recentOrder, id)
		if len(e.recentOrder) > recentCap {
			oldest := e.recentOrder[0]
			e.recentOrder = e.recentOrder[1:]
			delete(e.recent, oldest)
		}
	}
	e.recent[id] = category
}

func (e *Engine) categoryOf(id string) domain.Category {
	e.recentMu.Lock()
	defer e.recentMu.Unlock()

	if category, ok := e.recent[id]; ok {
		return category
	}
	return domain.CategorySystem
}

// GetPreferences returns the current preference set.
func (e *Engine) GetPreferences() domain.PreferenceSet {
	return e.deps.Prefs.Get()
}

// SetPreferences validates and persists a new preference set.
func (e *Engine) SetPreferences(ctx context.Context, p domain.PreferenceSet) error {
	return e.deps.Prefs.Set(ctx, p)
}

// GetAnalytics returns a point-in-time copy of the analytics counters.
func (e *Engine) GetAnalytics() analytics.Snapshot {
	return e.deps.Analytics.GetSnapshot()
}

// Dismiss marks the id dismissed in the durable ledger and counts the
// dismissal. On a ledger write failure the id stays undismissed and the
// caller should retry.
func (e *Engine) Dismiss(ctx context.Context, id string) error {
	if err := e.deps.Ledger.MarkDismissed(ctx, id); err != nil {
		return err
	}
	e.deps.Analytics.RecordDismissed(ctx, e.categoryOf(id))
	return nil
}

// MarkRead marks the id read in the durable ledger.
func (e *Engine) MarkRead(ctx context.Context, id string) error {
	return e.deps.Ledger.MarkRead(ctx, id)
}

// Clicked counts a user click-through on a delivered notification.
func (e *Engine) Clicked(ctx context.Context, id string) error {
	e.deps.Analytics.RecordClicked(ctx, e.categoryOf(id))
	return nil
}

// RequestPermission runs the platform notification prompt.
func (e *Engine) RequestPermission(ctx context.Context) error {
	return e.deps.Subscriber.RequestPermission(ctx)
}

// Subscribe establishes the push subscription.
func (e *Engine) Subscribe(ctx context.Context) error {
	return e.deps.Subscriber.Subscribe(ctx)
}

// Unsubscribe tears the push subscription down best-effort.
func (e *Engine) Unsubscribe(ctx context.Context) error {
	return e.deps.Subscriber.Unsubscribe(ctx)
}

// SubscriptionState exposes the push lifecycle state for diagnostics.
func (e *Engine) SubscriptionState() delivery.SubscriptionState {
	return e.deps.Subscriber.State()
}

// SignalDatasetChange nudges the snapshot evaluator to run outside its timer.
func (e *Engine) SignalDatasetChange() {
	select {
	case e.changeCh <- struct{}{}:
	default:
	}
}

// SendTest pushes a synthetic notification straight through the delivery
// subsystem, bypassing gating, so the user can verify the channel works.
func (e *Engine) SendTest(ctx context.Context) error {
	n := domain.Notification{
		ID:        "test:" + uuid.NewString(),
		Kind:      domain.KindInfo,
		Title:     "Test notification",
		Body:      "Notifications are working.",
		CreatedAt: e.now(),
		Priority:  domain.PriorityLow,
		Category:  domain.CategorySystem,
	}

	e.remember(n.ID, n.Category)
	e.deps.Analytics.RecordSent(ctx, n.Category)
	if err := e.deps.Deliverer.Deliver(observability.WithNotificationID(ctx, n.ID), n); err != nil {
		return err
	}
	if e.onNotification != nil {
		e.onNotification(n)
	}
	return nil
}
