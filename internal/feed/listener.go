package feed

import (
	"context"
	"fmt"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/deliverydesk/alert-engine/internal/observability"
	"go.uber.org/zap"
)

// Listener turns consumed change events into notification candidates on the
// sink channel. Events are processed in feed order; candidates inherit that
// order within this path.
type Listener struct {
	consumer Consumer
	sink     chan<- domain.Notification
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewListener(
	consumer Consumer,
	sink chan<- domain.Notification,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Listener, error) {
	if consumer == nil {
		return nil, fmt.Errorf("feed consumer is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("candidate sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Listener{
		consumer: consumer,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return l.consumer.Consume(ctx, l.handleEvent)
}

func (l *Listener) handleEvent(ctx context.Context, event domain.RealtimeEvent) error {
	l.metrics.IncFeedEvent(event.Op.String())

	n, emitted := Synthesize(event)
	if !emitted {
		l.logger.Debug("feed event suppressed",
			zap.String("op", event.Op.String()),
			zap.String("entityId", event.EntityID()),
		)
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.sink <- n:
	}

	return nil
}
