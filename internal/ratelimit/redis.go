package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
)

const keyPrefix = "adboard:ratelimit:workspace:"

// RedisRateLimiter enforces a per-workspace sliding-window limit backed
// by a Redis sorted set of request timestamps.
type RedisRateLimiter struct {
	client     *redis.Client
	rejections metric.Int64Counter
}

// NewRedisRateLimiter creates a limiter. The rejections counter is
// optional; pass nil when telemetry is disabled.
func NewRedisRateLimiter(client *redis.Client, rejections metric.Int64Counter) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:     client,
		rejections: rejections,
	}
}

// AllowRequest records the request and reports whether the workspace is
// within its limit, along with the remaining allowance in the window.
func (rl *RedisRateLimiter) AllowRequest(ctx context.Context, workspaceID string, limit int, windowSeconds int) (bool, int, error) {
	now := time.Now()
	windowStart := now.Add(-time.Duration(windowSeconds) * time.Second)
	key := keyPrefix + workspaceID

	// Single pipeline round trip: trim entries that fell out of the
	// window, register this request, count what remains.
	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	countCmd := pipe.ZCount(ctx, key, "-inf", "+inf")
	// Keys expire at twice the window so idle workspaces clean up
	pipe.Expire(ctx, key, time.Duration(windowSeconds*2)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit pipeline: %w", err)
	}

	count, err := countCmd.Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit count: %w", err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	allowed := count <= int64(limit)
	if !allowed && rl.rejections != nil {
		rl.rejections.Add(ctx, 1)
	}

	return allowed, remaining, nil
}
