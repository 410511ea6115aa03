package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/deliverydesk/alert-engine/internal/observability"
	"github.com/deliverydesk/alert-engine/internal/store"
	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

// CategoryCounters holds raw counts for one category plus rates derived on read.
type CategoryCounters struct {
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Clicked   int64 `json:"clicked"`
	Dismissed int64 `json:"dismissed"`

	DeliveryRate float64 `json:"deliveryRate"`
	ClickRate    float64 `json:"clickRate"`
	DismissRate  float64 `json:"dismissRate"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Categories map[domain.Category]CategoryCounters `json:"categories"`
	Daily      map[string]int64                     `json:"daily"`
	Totals     CategoryCounters                     `json:"totals"`
}

// Aggregator owns the analytics counters. All mutation goes through its
// Record* methods; counters are written through to the repository so a
// restart does not lose them, and mirrored into prometheus.
type Aggregator struct {
	repo    store.AnalyticsRepository
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu         sync.Mutex
	categories map[domain.Category]*CategoryCounters
	daily      map[string]int64
}

func NewAggregator(repo store.AnalyticsRepository, logger *zap.Logger, metrics *observability.Metrics) (*Aggregator, error) {
	if repo == nil {
		return nil, fmt.Errorf("analytics repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		repo:       repo,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
		categories: make(map[domain.Category]*CategoryCounters),
		daily:      make(map[string]int64),
	}, nil
}

// Load warms the in-memory counters from the repository.
func (a *Aggregator) Load(ctx context.Context) error {
	categoryModels, err := a.repo.LoadCategories(ctx)
	if err != nil {
		return fmt.Errorf("load category counters: %w", err)
	}
	dailyModels, err := a.repo.LoadDaily(ctx)
	if err != nil {
		return fmt.Errorf("load daily counters: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.categories = make(map[domain.Category]*CategoryCounters, len(categoryModels))
	for _, m := range categoryModels {
		a.categories[m.Category] = &CategoryCounters{
			Sent:      m.Sent,
			Delivered: m.Delivered,
			Clicked:   m.Clicked,
			Dismissed: m.Dismissed,
		}
	}

	a.daily = make(map[string]int64, len(dailyModels))
	for _, m := range dailyModels {
		a.daily[m.Day] = m.Count
	}

	return nil
}

// RecordSent counts a notification that entered the delivery stage and bumps
// the daily histogram for today.
func (a *Aggregator) RecordSent(ctx context.Context, category domain.Category) {
	a.record(ctx, category, store.CounterSent)

	day := a.now().UTC().Format(dayLayout)
	a.mu.Lock()
	a.daily[day]++
	a.mu.Unlock()

	if err := a.repo.IncDaily(ctx, day); err != nil {
		a.logger.Warn("persist daily counter failed", zap.String("day", day), zap.Error(err))
	}
}

func (a *Aggregator) RecordDelivered(ctx context.Context, category domain.Category) {
	a.record(ctx, category, store.CounterDelivered)
}

func (a *Aggregator) RecordClicked(ctx context.Context, category domain.Category) {
	a.record(ctx, category, store.CounterClicked)
}

func (a *Aggregator) RecordDismissed(ctx context.Context, category domain.Category) {
	a.record(ctx, category, store.CounterDismissed)
}

func (a *Aggregator) record(ctx context.Context, category domain.Category, field string) {
	a.mu.Lock()
	counters, ok := a.categories[category]
	if !ok {
		counters = &CategoryCounters{}
		a.categories[category] = counters
	}
	switch field {
	case store.CounterSent:
		counters.Sent++
	case store.CounterDelivered:
		counters.Delivered++
	case store.CounterClicked:
		counters.Clicked++
	case store.CounterDismissed:
		counters.Dismissed++
	}
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.IncAnalyticsEvent(category.String(), field)
	}

	// Counter persistence is best-effort: losing one increment on a store
	// hiccup is acceptable for advisory analytics.
	if err := a.repo.IncCategory(ctx, category, field); err != nil {
		a.logger.Warn("persist analytics counter failed",
			zap.String("category", category.String()),
			zap.String("field", field),
			zap.Error(err),
		)
	}
}

// RecordAttempt satisfies the delivery reporter contract; per-attempt counts
// live in prometheus only.
func (a *Aggregator) RecordAttempt(ctx context.Context, n domain.Notification, attempt int, err error) {
	if a.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	a.metrics.IncAnalyticsEvent(n.Category.String(), "attempt_"+outcome)
}

// RecordOutcome maps the final delivery result onto the counters. A failed
// delivery counts as dismissed so the dismiss rate reflects alerts the user
// never saw.
func (a *Aggregator) RecordOutcome(ctx context.Context, n domain.Notification, delivered bool) {
	if delivered {
		a.RecordDelivered(ctx, n.Category)
		return
	}
	a.RecordDismissed(ctx, n.Category)
}

// GetSnapshot copies the counters and derives the rates. Rates against a
// zero sent count are 0, not NaN.
func (a *Aggregator) GetSnapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := Snapshot{
		Categories: make(map[domain.Category]CategoryCounters, len(a.categories)),
		Daily:      make(map[string]int64, len(a.daily)),
	}

	var totals CategoryCounters
	for category, counters := range a.categories {
		c := *counters
		c.DeliveryRate = rate(c.Delivered, c.Sent)
		c.ClickRate = rate(c.Clicked, c.Sent)
		c.DismissRate = rate(c.Dismissed, c.Sent)
		snapshot.Categories[category] = c

		totals.Sent += c.Sent
		totals.Delivered += c.Delivered
		totals.Clicked += c.Clicked
		totals.Dismissed += c.Dismissed
	}

	totals.DeliveryRate = rate(totals.Delivered, totals.Sent)
	totals.ClickRate = rate(totals.Clicked, totals.Sent)
	totals.DismissRate = rate(totals.Dismissed, totals.Sent)
	snapshot.Totals = totals

	for day, count := range a.daily {
		snapshot.Daily[day] = count
	}

	return snapshot
}

func rate(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
