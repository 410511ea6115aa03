package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultWindow = 30 * time.Second
	// Tags idle longer than this are discarded so memory stays bounded
	// under high entity churn.
	defaultMaxIdle = time.Hour
	// How often Allow sweeps idle tags.
	pruneInterval = time.Minute
)

var _ Limiter = (*CooldownLimiter)(nil)

// CooldownLimiter is an in-process per-tag cooldown window.
type CooldownLimiter struct {
	window  time.Duration
	maxIdle time.Duration

	mu        sync.Mutex
	lastFired map[string]time.Time
	lastPrune time.Time
}

func NewCooldownLimiter(window time.Duration) *CooldownLimiter {
	if window <= 0 {
		window = defaultWindow
	}
	return &CooldownLimiter{
		window:    window,
		maxIdle:   defaultMaxIdle,
		lastFired: make(map[string]time.Time),
	}
}

func (l *CooldownLimiter) Allow(ctx context.Context, tag string, now time.Time) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}
	normalizedTag := strings.TrimSpace(tag)
	if normalizedTag == "" {
		return false, fmt.Errorf("tag is required")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)

	if fired, ok := l.lastFired[normalizedTag]; ok && now.Sub(fired) < l.window {
		return false, nil
	}

	l.lastFired[normalizedTag] = now
	return true, nil
}

func (l *CooldownLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < pruneInterval {
		return
	}
	l.lastPrune = now

	for tag, fired := range l.lastFired {
		if now.Sub(fired) > l.maxIdle {
			delete(l.lastFired, tag)
		}
	}
}
