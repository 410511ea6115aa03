package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"go.uber.org/zap"
)

const defaultSnapshotInterval = 30 * time.Second

// SnapshotSource is the pull-style read of the full current entity collection.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]domain.Delivery, error)
}

// Evaluator runs the rule set against the full dataset on a timer and on
// explicit dataset-change signals. The timer catches time-based rule drift
// such as a deadline passing with no data change.
type Evaluator struct {
	source   SnapshotSource
	rules    []Rule
	sink     chan<- domain.Notification
	logger   *zap.Logger
	interval time.Duration
	changeCh <-chan struct{}
	now      func() time.Time
}

func NewEvaluator(
	source SnapshotSource,
	rules []Rule,
	sink chan<- domain.Notification,
	interval time.Duration,
	changeCh <-chan struct{},
	logger *zap.Logger,
) (*Evaluator, error) {
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("candidate sink is required")
	}
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{
		source:   source,
		rules:    rules,
		sink:     sink,
		logger:   logger,
		interval: interval,
		changeCh: changeCh,
		now:      time.Now,
	}, nil
}

func (e *Evaluator) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial pass so existing rule matches surface without waiting
	// for the first ticker edge.
	if err := e.evaluateOnce(ctx); err != nil && ctx.Err() == nil {
		e.logger.Error("snapshot evaluator initial pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case _, ok := <-e.changeCh:
			if !ok {
				return nil
			}
		}

		if err := e.evaluateOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.logger.Error("snapshot evaluation failed", zap.Error(err))
		}
	}
}

func (e *Evaluator) evaluateOnce(ctx context.Context) error {
	deliveries, err := e.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	now := e.now()
	emitted := 0
	for _, d := range deliveries {
		for _, rule := range e.rules {
			n, matched := rule.Evaluate(d, now)
			if !matched {
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			case e.sink <- n:
				emitted++
			}
		}
	}

	if emitted > 0 {
		e.logger.Debug("snapshot pass emitted candidates",
			zap.Int("candidates", emitted),
			zap.Int("deliveries", len(deliveries)),
		)
	}
	return nil
}
