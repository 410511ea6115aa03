package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/deliverydesk/alert-engine/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
	// Consecutive reconnect failures tolerated before the feed is declared
	// unavailable.
	defaultReconnectBudget = 10
	defaultPrefetch        = 16
)

var _ Consumer = (*AMQPConsumer)(nil)

// AMQPConsumer subscribes to the change feed queue with at-least-once
// semantics. Disconnects are recovered internally with exponential backoff;
// only an exhausted reconnect budget surfaces as ErrFeedUnavailable.
type AMQPConsumer struct {
	url             string
	queue           string
	prefetch        int
	reconnectBudget int
	logger          *zap.Logger
	metrics         *observability.Metrics

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewAMQPConsumer(url, queue string, logger *zap.Logger, metrics *observability.Metrics) (*AMQPConsumer, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("feed url is required")
	}
	if strings.TrimSpace(queue) == "" {
		return nil, fmt.Errorf("feed queue is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AMQPConsumer{
		url:             url,
		queue:           queue,
		prefetch:        defaultPrefetch,
		reconnectBudget: defaultReconnectBudget,
		logger:          logger,
		metrics:         metrics,
	}, nil
}

func (c *AMQPConsumer) Consume(ctx context.Context, handler EventHandler) error {
	if c == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if handler == nil {
		return fmt.Errorf("event handler is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := reconnectBackoff
	failures := 0
	for {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			failures = 0
			continue
		}

		failures++
		c.metrics.IncFeedReconnect()
		if failures >= c.reconnectBudget {
			c.logger.Error("change feed reconnect budget exhausted",
				zap.Int("failures", failures),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %v", domain.ErrFeedUnavailable, err)
		}

		c.logger.Warn("change feed disconnected, reconnecting",
			zap.Duration("backoff", backoff),
			zap.Int("failures", failures),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *AMQPConsumer) consumeOnce(ctx context.Context, handler EventHandler) error {
	ch, err := c.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare feed queue %q: %w", c.queue, err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume feed queue %q: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("feed delivery channel closed")
			}

			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *AMQPConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler EventHandler) error {
	var event domain.RealtimeEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.Warn("rejecting feed event: invalid JSON",
			zap.Error(err),
			zap.String("routingKey", d.RoutingKey),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid feed event: %w", rejectErr)
		}
		return nil
	}

	if err := event.Validate(); err != nil {
		c.logger.Warn("rejecting feed event: validation failed",
			zap.Error(err),
			zap.String("op", event.Op.String()),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid feed event: %w", rejectErr)
		}
		return nil
	}

	if err := handler(ctx, event); err != nil {
		if nackErr := d.Nack(false, true); nackErr != nil {
			return fmt.Errorf("handler failed and nack failed: %w", nackErr)
		}
		return nil
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack feed event: %w", err)
	}
	return nil
}

func (c *AMQPConsumer) channel(ctx context.Context) (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to feed broker: %w", err)
		}
		c.conn = conn
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open feed channel: %w", err)
	}
	return ch, nil
}

func (c *AMQPConsumer) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}
