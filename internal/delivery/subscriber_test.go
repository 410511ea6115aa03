package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"go.uber.org/zap"
)

type fakePrompter struct {
	granted bool
	err     error
	calls   int
}

func (f *fakePrompter) RequestPermission(ctx context.Context) (bool, error) {
	f.calls++
	return f.granted, f.err
}

type fakeExchanger struct {
	record domain.PushSubscriptionRecord
	err    error
}

func (f *fakeExchanger) Exchange(ctx context.Context) (domain.PushSubscriptionRecord, error) {
	return f.record, f.err
}

type fakeRegistry struct {
	registered   []string
	deregistered []string
	registerErr  error
}

func (f *fakeRegistry) Register(ctx context.Context, record domain.PushSubscriptionRecord) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, record.Endpoint)
	return nil
}

func (f *fakeRegistry) Deregister(ctx context.Context, endpoint string) error {
	f.deregistered = append(f.deregistered, endpoint)
	return nil
}

type fakeSubscriptionRepo struct {
	record  *domain.PushSubscriptionRecord
	saveErr error
}

func (f *fakeSubscriptionRepo) Get(ctx context.Context) (*domain.PushSubscriptionRecord, error) {
	if f.record == nil {
		return nil, domain.ErrNotFound
	}
	return f.record, nil
}

func (f *fakeSubscriptionRepo) Save(ctx context.Context, record domain.PushSubscriptionRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.record = &record
	return nil
}

func (f *fakeSubscriptionRepo) Delete(ctx context.Context, endpoint string) error {
	f.record = nil
	return nil
}

func testRecord() domain.PushSubscriptionRecord {
	return domain.PushSubscriptionRecord{
		Endpoint:   "https://push.example.com/sub/abc",
		PublicKey:  "pk",
		AuthSecret: "secret",
		CreatedAt:  time.Now(),
	}
}

func newTestSubscriber(t *testing.T, prompter PermissionPrompter, exchanger KeyExchanger, registry *fakeRegistry, repo *fakeSubscriptionRepo) *Subscriber {
	t.Helper()

	s, err := NewSubscriber(prompter, exchanger, registry, repo, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSubscriber() error = %v", err)
	}
	return s
}

func TestSubscriber_PermissionGranted(t *testing.T) {
	t.Parallel()

	s := newTestSubscriber(t, &fakePrompter{granted: true}, &fakeExchanger{record: testRecord()}, &fakeRegistry{}, &fakeSubscriptionRepo{})

	if err := s.RequestPermission(context.Background()); err != nil {
		t.Fatalf("RequestPermission() error = %v", err)
	}
	if got := s.State(); got != StatePermissionGranted {
		t.Fatalf("State() = %s, want %s", got, StatePermissionGranted)
	}
}

func TestSubscriber_PermissionDeniedIsTerminal(t *testing.T) {
	t.Parallel()

	s := newTestSubscriber(t, &fakePrompter{granted: false}, &fakeExchanger{record: testRecord()}, &fakeRegistry{}, &fakeSubscriptionRepo{})

	err := s.RequestPermission(context.Background())
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("RequestPermission() error = %v, want ErrPermissionDenied", err)
	}
	if got := s.State(); got != StatePermissionDenied {
		t.Fatalf("State() = %s, want %s", got, StatePermissionDenied)
	}

	if err := s.Subscribe(context.Background()); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("Subscribe() error = %v, want ErrPermissionDenied", err)
	}
}

func TestSubscriber_SubscribeHappyPath(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{}
	repo := &fakeSubscriptionRepo{}
	s := newTestSubscriber(t, &fakePrompter{granted: true}, &fakeExchanger{record: testRecord()}, registry, repo)

	if err := s.RequestPermission(context.Background()); err != nil {
		t.Fatalf("RequestPermission() error = %v", err)
	}
	if err := s.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if got := s.State(); got != StateSubscribed {
		t.Fatalf("State() = %s, want %s", got, StateSubscribed)
	}
	if len(registry.registered) != 1 {
		t.Fatalf("registered endpoints = %v, want one", registry.registered)
	}
	if repo.record == nil || repo.record.Endpoint != "https://push.example.com/sub/abc" {
		t.Fatalf("persisted record = %+v, want saved subscription", repo.record)
	}
}

func TestSubscriber_SubscribeRequiresGrantedPermission(t *testing.T) {
	t.Parallel()

	s := newTestSubscriber(t, &fakePrompter{granted: true}, &fakeExchanger{record: testRecord()}, &fakeRegistry{}, &fakeSubscriptionRepo{})

	err := s.Subscribe(context.Background())
	if !errors.Is(err, domain.ErrSubscriptionFailure) {
		t.Fatalf("Subscribe() error = %v, want ErrSubscriptionFailure", err)
	}
	if got := s.State(); got != StateUnsubscribed {
		t.Fatalf("State() = %s, want %s", got, StateUnsubscribed)
	}
}

func TestSubscriber_SubscribeFailureLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		exchanger *fakeExchanger
		registry  *fakeRegistry
		repo      *fakeSubscriptionRepo
	}{
		{
			name:      "key exchange fails",
			exchanger: &fakeExchanger{err: errors.New("push service unreachable")},
			registry:  &fakeRegistry{},
			repo:      &fakeSubscriptionRepo{},
		},
		{
			name:      "remote registration fails",
			exchanger: &fakeExchanger{record: testRecord()},
			registry:  &fakeRegistry{registerErr: errors.New("broker rejected record")},
			repo:      &fakeSubscriptionRepo{},
		},
		{
			name:      "local persistence fails",
			exchanger: &fakeExchanger{record: testRecord()},
			registry:  &fakeRegistry{},
			repo:      &fakeSubscriptionRepo{saveErr: errors.New("store unavailable")},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestSubscriber(t, &fakePrompter{granted: true}, tc.exchanger, tc.registry, tc.repo)
			if err := s.RequestPermission(context.Background()); err != nil {
				t.Fatalf("RequestPermission() error = %v", err)
			}

			err := s.Subscribe(context.Background())
			if !errors.Is(err, domain.ErrSubscriptionFailure) {
				t.Fatalf("Subscribe() error = %v, want ErrSubscriptionFailure", err)
			}
			if got := s.State(); got != StatePermissionGranted {
				t.Fatalf("State() = %s, want unchanged %s", got, StatePermissionGranted)
			}
		})
	}
}

func TestSubscriber_SubscribeRollsBackRemoteOnPersistFailure(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{}
	repo := &fakeSubscriptionRepo{saveErr: errors.New("store unavailable")}
	s := newTestSubscriber(t, &fakePrompter{granted: true}, &fakeExchanger{record: testRecord()}, registry, repo)

	if err := s.RequestPermission(context.Background()); err != nil {
		t.Fatalf("RequestPermission() error = %v", err)
	}
	if err := s.Subscribe(context.Background()); !errors.Is(err, domain.ErrSubscriptionFailure) {
		t.Fatalf("Subscribe() error = %v, want ErrSubscriptionFailure", err)
	}
	if len(registry.deregistered) != 1 {
		t.Fatalf("deregistered = %v, want rollback of the registered endpoint", registry.deregistered)
	}
}

func TestSubscriber_UnsubscribeIsBestEffort(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{}
	repo := &fakeSubscriptionRepo{}
	s := newTestSubscriber(t, &fakePrompter{granted: true}, &fakeExchanger{record: testRecord()}, registry, repo)

	if err := s.RequestPermission(context.Background()); err != nil {
		t.Fatalf("RequestPermission() error = %v", err)
	}
	if err := s.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := s.Unsubscribe(context.Background()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if got := s.State(); got != StateUnsubscribed {
		t.Fatalf("State() = %s, want %s", got, StateUnsubscribed)
	}
	if len(registry.deregistered) != 1 {
		t.Fatalf("deregistered = %v, want one endpoint", registry.deregistered)
	}
	if repo.record != nil {
		t.Fatalf("persisted record = %+v, want removed", repo.record)
	}
}

func TestSubscriber_Restore(t *testing.T) {
	t.Parallel()

	record := testRecord()
	repo := &fakeSubscriptionRepo{record: &record}
	s := newTestSubscriber(t, &fakePrompter{granted: true}, &fakeExchanger{record: record}, &fakeRegistry{}, repo)

	if err := s.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got := s.State(); got != StateSubscribed {
		t.Fatalf("State() = %s, want %s", got, StateSubscribed)
	}
	if got := s.Endpoint(); got != record.Endpoint {
		t.Fatalf("Endpoint() = %s, want %s", got, record.Endpoint)
	}
}

func TestSubscriber_UnsupportedPlatform(t *testing.T) {
	t.Parallel()

	s := newTestSubscriber(t, nil, nil, &fakeRegistry{}, &fakeSubscriptionRepo{})

	if got := s.State(); got != StateUnsupported {
		t.Fatalf("State() = %s, want %s", got, StateUnsupported)
	}
	if err := s.RequestPermission(context.Background()); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("RequestPermission() error = %v, want ErrPermissionDenied", err)
	}
}
