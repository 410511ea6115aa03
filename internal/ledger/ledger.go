// Package ledger owns the durable dismissed/read sets. All lookups and writes
// for a given id are serialized behind one mutex so the two synthesis paths
// cannot observe a half-applied dismissal.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deliverydesk/alert-engine/internal/store"
	"go.uber.org/zap"
)

const defaultRetention = 90 * 24 * time.Hour

type Ledger struct {
	repo      store.LedgerRepository
	logger    *zap.Logger
	retention time.Duration
	now       func() time.Time

	mu        sync.Mutex
	dismissed map[string]struct{}
	read      map[string]struct{}
}

func New(repo store.LedgerRepository, retention time.Duration, logger *zap.Logger) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository is required")
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ledger{
		repo:      repo,
		logger:    logger,
		retention: retention,
		now:       time.Now,
		dismissed: make(map[string]struct{}),
		read:      make(map[string]struct{}),
	}, nil
}

// Load warms the in-memory sets from the durable store. Call once at engine
// start, before any candidate is processed.
func (l *Ledger) Load(ctx context.Context) error {
	dismissedIDs, err := l.repo.LoadIDs(ctx, store.LedgerKindDismissed)
	if err != nil {
		return fmt.Errorf("failed to load dismissal ledger: %w", err)
	}
	readIDs, err := l.repo.LoadIDs(ctx, store.LedgerKindRead)
	if err != nil {
		return fmt.Errorf("failed to load read ledger: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range dismissedIDs {
		l.dismissed[id] = struct{}{}
	}
	for _, id := range readIDs {
		l.read[id] = struct{}{}
	}

	l.logger.Info("ledger loaded",
		zap.Int("dismissed", len(l.dismissed)),
		zap.Int("read", len(l.read)),
	)
	return nil
}

func (l *Ledger) IsDismissed(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.dismissed[id]
	return ok
}

func (l *Ledger) IsRead(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.read[id]
	return ok
}

// MarkDismissed records a dismissal. The id is only considered dismissed once
// the durable write succeeds; on failure the caller should retry.
func (l *Ledger) MarkDismissed(ctx context.Context, id string) error {
	return l.mark(ctx, id, store.LedgerKindDismissed)
}

// MarkRead records a read marker with the same durability contract as
// MarkDismissed.
func (l *Ledger) MarkRead(ctx context.Context, id string) error {
	return l.mark(ctx, id, store.LedgerKindRead)
}

func (l *Ledger) mark(ctx context.Context, id, kind string) error {
	if id == "" {
		return fmt.Errorf("notification id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Durable write first: the in-memory set must never claim a dismissal
	// the store does not hold.
	if err := l.repo.Add(ctx, id, kind, l.now()); err != nil {
		return err
	}

	switch kind {
	case store.LedgerKindDismissed:
		l.dismissed[id] = struct{}{}
	case store.LedgerKindRead:
		l.read[id] = struct{}{}
	}
	return nil
}

// Prune drops ledger entries older than the retention window, durably and in
// memory. Returns the number of durable rows removed.
func (l *Ledger) Prune(ctx context.Context) (int64, error) {
	cutoff := l.now().Add(-l.retention)

	removed, err := l.repo.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune ledger: %w", err)
	}
	if removed == 0 {
		return 0, nil
	}

	// Rebuild the cache from the store rather than tracking ages in memory.
	dismissedIDs, err := l.repo.LoadIDs(ctx, store.LedgerKindDismissed)
	if err != nil {
		return removed, fmt.Errorf("failed to reload dismissal ledger after prune: %w", err)
	}
	readIDs, err := l.repo.LoadIDs(ctx, store.LedgerKindRead)
	if err != nil {
		return removed, fmt.Errorf("failed to reload read ledger after prune: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.dismissed = make(map[string]struct{}, len(dismissedIDs))
	for _, id := range dismissedIDs {
		l.dismissed[id] = struct{}{}
	}
	l.read = make(map[string]struct{}, len(readIDs))
	for _, id := range readIDs {
		l.read[id] = struct{}{}
	}

	l.logger.Info("ledger pruned",
		zap.Int64("removed", removed),
		zap.Time("cutoff", cutoff),
	)
	return removed, nil
}

// RunPruner runs Prune immediately and then once per day until the context is
// canceled.
func (l *Ledger) RunPruner(ctx context.Context) error {
	if _, err := l.Prune(ctx); err != nil && ctx.Err() == nil {
		l.logger.Error("initial ledger prune failed", zap.Error(err))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := l.Prune(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				l.logger.Error("ledger prune failed", zap.Error(err))
			}
		}
	}
}
