package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a caller may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Nop allows everything.
type Nop struct{}

func (Nop) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

const keyPrefix = "linkbot:ratelimit:"

// RedisLimiter is a fixed-window counter per key shared by every bot
// instance pointed at the same Redis.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	logger *zap.Logger
}

// NewRedisLimiter connects to redisURL and allows limit calls per window.
func NewRedisLimiter(redisURL string, limit int, window time.Duration, logger *zap.Logger) (*RedisLimiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, logger: logger}, nil
}

// Allow counts one call for key in the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := keyPrefix + key

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		// First hit of the window; the counter has no expiry yet.
		if err := l.rdb.PExpire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
		remaining = l.window
	}

	count := int(incr.Val())
	d := Decision{Allowed: count <= l.limit}
	if d.Allowed {
		d.Remaining = l.limit - count
	} else {
		d.RetryAfter = remaining
		l.logger.Debug("rate limited", zap.String("key", key), zap.Int("count", count))
	}
	return d, nil
}

// Close shuts down the Redis connection.
func (l *RedisLimiter) Close() error {
	return l.rdb.Close()
}
