package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/deliverydesk/alert-engine/internal/push"
	"github.com/deliverydesk/alert-engine/internal/store"
	"go.uber.org/zap"
)

// SubscriptionState tracks where the push channel sits in its lifecycle.
type SubscriptionState string

const (
	StateUnsupported         SubscriptionState = "UNSUPPORTED"
	StateUnsubscribed        SubscriptionState = "UNSUBSCRIBED"
	StatePermissionRequested SubscriptionState = "PERMISSION_REQUESTED"
	StatePermissionGranted   SubscriptionState = "PERMISSION_GRANTED"
	StatePermissionDenied    SubscriptionState = "PERMISSION_DENIED"
	StateSubscribed          SubscriptionState = "SUBSCRIBED"
)

func (s SubscriptionState) String() string {
	return string(s)
}

// PermissionPrompter asks the platform for notification permission.
// Granted=false with a nil error means the user declined.
type PermissionPrompter interface {
	RequestPermission(ctx context.Context) (granted bool, err error)
}

// KeyExchanger performs the push-service key exchange and returns the
// resulting subscription record.
type KeyExchanger interface {
	Exchange(ctx context.Context) (domain.PushSubscriptionRecord, error)
}

// Subscriber owns the push subscription lifecycle. Subscribe performs the
// key exchange, remote registration, and local persistence as one unit;
// any failure leaves the state exactly where it was.
type Subscriber struct {
	prompter  PermissionPrompter
	exchanger KeyExchanger
	registry  push.Registry
	records   store.SubscriptionRepository
	logger    *zap.Logger

	mu    sync.Mutex
	state SubscriptionState
	// endpoint of the active subscription, empty when not subscribed.
	endpoint string
}

func NewSubscriber(
	prompter PermissionPrompter,
	exchanger KeyExchanger,
	registry push.Registry,
	records store.SubscriptionRepository,
	logger *zap.Logger,
) (*Subscriber, error) {
	if registry == nil {
		return nil, fmt.Errorf("push registry is required")
	}
	if records == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	state := StateUnsubscribed
	if prompter == nil || exchanger == nil {
		state = StateUnsupported
	}

	return &Subscriber{
		prompter:  prompter,
		exchanger: exchanger,
		registry:  registry,
		records:   records,
		logger:    logger,
		state:     state,
	}, nil
}

// Restore recovers a previously persisted subscription so a restarted engine
// does not force the user back through the permission prompt.
func (s *Subscriber) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUnsupported {
		return nil
	}

	record, err := s.records.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load persisted subscription: %w", err)
	}

	s.state = StateSubscribed
	s.endpoint = record.Endpoint
	s.logger.Info("restored push subscription", zap.String("endpoint", record.Endpoint))
	return nil
}

// State returns the current lifecycle state.
func (s *Subscriber) State() SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RequestPermission runs the platform prompt and records the outcome.
// A declined prompt is terminal until the user changes the platform setting.
func (s *Subscriber) RequestPermission(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUnsupported:
		return fmt.Errorf("%w: notifications are not supported on this platform", domain.ErrPermissionDenied)
	case StateSubscribed:
		return nil
	case StatePermissionGranted:
		return nil
	}

	s.state = StatePermissionRequested
	granted, err := s.prompter.RequestPermission(ctx)
	if err != nil {
		s.state = StateUnsubscribed
		return fmt.Errorf("permission prompt failed: %w", err)
	}
	if !granted {
		s.state = StatePermissionDenied
		s.logger.Info("notification permission denied by user")
		return domain.ErrPermissionDenied
	}

	s.state = StatePermissionGranted
	s.logger.Info("notification permission granted")
	return nil
}

// Subscribe performs the key exchange, registers the record with the remote
// push broker, and persists it locally. Valid only once permission has been
// granted. On any failure the state is left unchanged so the caller can retry.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateSubscribed:
		return nil
	case StatePermissionGranted:
		// proceed
	case StatePermissionDenied:
		return domain.ErrPermissionDenied
	default:
		return fmt.Errorf("%w: subscribe requires granted permission (state %s)", domain.ErrSubscriptionFailure, s.state)
	}

	record, err := s.exchanger.Exchange(ctx)
	if err != nil {
		return fmt.Errorf("%w: key exchange: %v", domain.ErrSubscriptionFailure, err)
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: key exchange produced invalid record: %v", domain.ErrSubscriptionFailure, err)
	}

	if err := s.registry.Register(ctx, record); err != nil {
		return fmt.Errorf("%w: remote registration: %v", domain.ErrSubscriptionFailure, err)
	}

	if err := s.records.Save(ctx, record); err != nil {
		// Keep remote and local in sync when the local write loses.
		if deregErr := s.registry.Deregister(ctx, record.Endpoint); deregErr != nil {
			s.logger.Warn("rollback deregistration failed",
				zap.String("endpoint", record.Endpoint),
				zap.Error(deregErr),
			)
		}
		return fmt.Errorf("%w: persist subscription: %v", domain.ErrSubscriptionFailure, err)
	}

	s.state = StateSubscribed
	s.endpoint = record.Endpoint
	s.logger.Info("push subscription established", zap.String("endpoint", record.Endpoint))
	return nil
}

// Unsubscribe tears down local and remote registration best-effort. Each
// step logs its own failure; the state always ends at Unsubscribed.
func (s *Subscriber) Unsubscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUnsupported {
		return nil
	}

	endpoint := s.endpoint
	if endpoint != "" {
		if err := s.registry.Deregister(ctx, endpoint); err != nil {
			s.logger.Warn("remote deregistration failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
		}
		if err := s.records.Delete(ctx, endpoint); err != nil {
			s.logger.Warn("local subscription delete failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
		}
	}

	s.state = StateUnsubscribed
	s.endpoint = ""
	s.logger.Info("push subscription removed")
	return nil
}

// Endpoint returns the active subscription endpoint, empty when unsubscribed.
func (s *Subscriber) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}
