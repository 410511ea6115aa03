package ratelimit

import (
	"context"
	"time"
)

// Limiter suppresses redundant re-delivery of the same logical alert. Allow
// returns false while the tag is inside its cooldown window and true (marking
// the tag fired) otherwise.
type Limiter interface {
	Allow(ctx context.Context, tag string, now time.Time) (bool, error)
}
