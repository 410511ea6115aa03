// Package prefs owns the per-user PreferenceSet and the preference-gated
// delivery filter.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/deliverydesk/alert-engine/internal/store"
	"go.uber.org/zap"
)

type Store struct {
	repo   store.PreferenceRepository
	userID string
	logger *zap.Logger

	mu    sync.RWMutex
	prefs domain.PreferenceSet
}

func NewStore(repo store.PreferenceRepository, userID string, logger *zap.Logger) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("preference repository is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		repo:   repo,
		userID: userID,
		logger: logger,
		prefs:  domain.DefaultPreferences(),
	}, nil
}

// Load reads the stored set, falling back to defaults for a first run.
func (s *Store) Load(ctx context.Context) error {
	stored, err := s.repo.Get(ctx, s.userID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("no stored preferences, using defaults", zap.String("userId", s.userID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	s.mu.Lock()
	s.prefs = *stored
	s.mu.Unlock()
	return nil
}

func (s *Store) Get() domain.PreferenceSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *Store) Set(ctx context.Context, prefs domain.PreferenceSet) error {
	prefs.Normalize()
	if err := prefs.Validate(); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, s.userID, prefs); err != nil {
		return fmt.Errorf("failed to persist preferences: %w", err)
	}

	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
	return nil
}

// ShouldDeliver reports whether a candidate passes the preference gate: its
// category and priority are enabled, the push channel is on, and now falls
// outside quiet hours. A false result is a silent drop, not an error.
func ShouldDeliver(n domain.Notification, p domain.PreferenceSet, now time.Time) bool {
	if !p.Categories[n.Category] {
		return false
	}
	if !p.Priorities[n.Priority] {
		return false
	}
	if !p.Channels[domain.ChannelPush] {
		return false
	}
	if p.QuietHours.Contains(now) {
		return false
	}
	return true
}
