package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var _ Limiter = (*RedisCooldownLimiter)(nil)

// RedisCooldownLimiter is the distributed variant for multi-instance
// deployments. The cooldown window maps onto SET NX with a TTL, so idle tags
// expire server-side and need no pruning.
type RedisCooldownLimiter struct {
	client *goredis.Client
	window time.Duration
}

func NewRedisCooldownLimiter(client *goredis.Client, window time.Duration) (*RedisCooldownLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if window <= 0 {
		window = defaultWindow
	}

	return &RedisCooldownLimiter{
		client: client,
		window: window,
	}, nil
}

func (l *RedisCooldownLimiter) Allow(ctx context.Context, tag string, now time.Time) (bool, error) {
	if l == nil || l.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}
	normalizedTag := strings.TrimSpace(tag)
	if normalizedTag == "" {
		return false, fmt.Errorf("tag is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := "cooldown:" + normalizedTag
	set, err := l.client.SetNX(ctx, key, now.UTC().Unix(), l.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate cooldown: %w", err)
	}

	return set, nil
}

func NewRedisClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
