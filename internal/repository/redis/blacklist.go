package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/core/port"
)

const defaultBlacklistPrefix = "blacklist"

// BlacklistRepository stores revoked tokens in Redis keyed by subject and
// scope. Each key holds the exact token string that was revoked, so an old
// token presented after a rotation still misses the entry for the new one.
type BlacklistRepository struct {
	client *red.Client
	prefix string
}

// NewBlacklistRepository wires a Redis client into a token blacklist.
func NewBlacklistRepository(client *red.Client, keyPrefix string) *BlacklistRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultBlacklistPrefix
	}

	return &BlacklistRepository{client: client, prefix: prefix}
}

// Add records the token as revoked for the subject and scope. The TTL is
// expected to match the token's remaining lifetime; after that natural expiry
// rejects the token anyway.
func (r *BlacklistRepository) Add(ctx context.Context, subject string, scope domain.TokenScope, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("token must not be empty")
	}

	key, err := r.key(subject, scope)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, key, token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set blacklisted token: %w", err)
	}

	return nil
}

// Revoked reports whether the presented token matches the blacklist entry for
// the subject and scope. An absent entry is not an error.
func (r *BlacklistRepository) Revoked(ctx context.Context, subject string, scope domain.TokenScope, token string) (bool, error) {
	key, err := r.key(subject, scope)
	if err != nil {
		return false, err
	}

	stored, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get blacklisted token: %w", err)
	}

	return stored == token, nil
}

// Remove deletes the blacklist entry for the subject and scope.
func (r *BlacklistRepository) Remove(ctx context.Context, subject string, scope domain.TokenScope) error {
	key, err := r.key(subject, scope)
	if err != nil {
		return err
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del blacklisted token: %w", err)
	}

	return nil
}

func (r *BlacklistRepository) key(subject string, scope domain.TokenScope) (string, error) {
	trimmed := strings.TrimSpace(subject)
	if trimmed == "" {
		return "", errors.New("subject must not be empty")
	}
	return fmt.Sprintf("%s:%s:%s", r.prefix, scope, trimmed), nil
}

var _ port.TokenBlacklist = (*BlacklistRepository)(nil)
