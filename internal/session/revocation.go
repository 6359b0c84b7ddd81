package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records token ids that were logged out before their expiry.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NoopRevocationList keeps sessions purely stateless: logout only clears the cookie.
type NoopRevocationList struct{}

func (NoopRevocationList) Revoke(context.Context, string, time.Time) error { return nil }

func (NoopRevocationList) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// RedisRevocationList stores revoked token ids as keys that expire together
// with the token, so the list never outgrows the set of live sessions.
type RedisRevocationList struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRevocationList creates a RevocationList backed by client.
func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client, now: time.Now}
}

// Revoke marks tokenID revoked until the token's own expiry.
func (l *RedisRevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}
	ttl := until.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, revocationKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked.
func (l *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := l.client.Get(ctx, revocationKey(tokenID)).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, fmt.Errorf("checking token revocation: %w", err)
}

func revocationKey(tokenID string) string {
	return "session:revoked:" + tokenID
}
