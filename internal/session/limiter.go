package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter tracks failed logins per username.
type LoginLimiter interface {
	// Locked reports whether further attempts for key must be refused.
	Locked(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// NoopLoginLimiter never locks anyone out.
type NoopLoginLimiter struct{}

func (NoopLoginLimiter) Locked(context.Context, string) (bool, error) { return false, nil }

func (NoopLoginLimiter) RecordFailure(context.Context, string) error { return nil }

func (NoopLoginLimiter) Reset(context.Context, string) error { return nil }

// RedisLoginLimiter counts failures in a key whose TTL starts at the first failure.
type RedisLoginLimiter struct {
	client      *redis.Client
	maxAttempts int
	lockout     time.Duration
}

// NewRedisLoginLimiter creates a limiter that locks a username after maxAttempts
// failures within lockout.
func NewRedisLoginLimiter(client *redis.Client, maxAttempts int, lockout time.Duration) *RedisLoginLimiter {
	return &RedisLoginLimiter{client: client, maxAttempts: maxAttempts, lockout: lockout}
}

func (l *RedisLoginLimiter) Locked(ctx context.Context, key string) (bool, error) {
	count, err := l.client.Get(ctx, limiterKey(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("reading login failures: %w", err)
	}
	return count >= l.maxAttempts, nil
}

func (l *RedisLoginLimiter) RecordFailure(ctx context.Context, key string) error {
	k := limiterKey(key)
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("recording login failure: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.lockout).Err(); err != nil {
			return fmt.Errorf("setting login failure window: %w", err)
		}
	}
	return nil
}

func (l *RedisLoginLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, limiterKey(key)).Err(); err != nil {
		return fmt.Errorf("resetting login failures: %w", err)
	}
	return nil
}

func limiterKey(username string) string {
	return "login:failures:" + strings.ToLower(strings.TrimSpace(username))
}
