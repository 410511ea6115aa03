// Package feed consumes the ordered change-event stream and synthesizes
// incremental notification candidates from it.
package feed

import (
	"context"

	"github.com/deliverydesk/alert-engine/internal/domain"
)

// EventHandler handles one consumed change event.
type EventHandler func(ctx context.Context, event domain.RealtimeEvent) error

// Consumer is an ordered, at-least-once subscription over the change feed.
type Consumer interface {
	Consume(ctx context.Context, handler EventHandler) error
	Close() error
}
