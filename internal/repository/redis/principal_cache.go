package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/core/port"
	"github.com/bohdanboiprav/photoshare-app/internal/repository"
)

const defaultPrincipalPrefix = "principal"

// PrincipalCacheRepository stores versioned principal snapshots in Redis.
// Entries written with a different schema version are treated as misses so
// that deployments with diverging snapshot shapes never read each other's data.
type PrincipalCacheRepository struct {
	client *red.Client
	prefix string
}

// NewPrincipalCacheRepository wires a Redis client into a principal cache.
func NewPrincipalCacheRepository(client *red.Client, keyPrefix string) *PrincipalCacheRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultPrincipalPrefix
	}

	return &PrincipalCacheRepository{client: client, prefix: prefix}
}

// Get returns the cached snapshot for the subject, or repository.ErrNotFound
// when no usable entry exists.
func (r *PrincipalCacheRepository) Get(ctx context.Context, subject string) (*domain.Principal, error) {
	key, err := r.key(subject)
	if err != nil {
		return nil, err
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get principal: %w", err)
	}

	var principal domain.Principal
	if err := json.Unmarshal(raw, &principal); err != nil {
		return nil, fmt.Errorf("unmarshal principal: %w", err)
	}

	if principal.SchemaVersion != domain.PrincipalSchemaVersion {
		return nil, repository.ErrNotFound
	}

	return &principal, nil
}

// Set stores the snapshot for the subject with the provided TTL.
func (r *PrincipalCacheRepository) Set(ctx context.Context, subject string, principal domain.Principal, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	key, err := r.key(subject)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}

	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set principal: %w", err)
	}

	return nil
}

// Delete evicts the cached snapshot for the subject.
func (r *PrincipalCacheRepository) Delete(ctx context.Context, subject string) error {
	key, err := r.key(subject)
	if err != nil {
		return err
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del principal: %w", err)
	}

	return nil
}

func (r *PrincipalCacheRepository) key(subject string) (string, error) {
	trimmed := strings.TrimSpace(subject)
	if trimmed == "" {
		return "", errors.New("subject must not be empty")
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed), nil
}

var _ port.PrincipalCache = (*PrincipalCacheRepository)(nil)
