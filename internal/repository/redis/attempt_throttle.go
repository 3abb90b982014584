package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bohdanboiprav/photoshare-app/internal/core/port"
)

// AttemptThrottleRepository bounds login, signup, and refresh attempts with a
// sliding window kept in a Redis sorted set per client key. Scores are attempt
// timestamps in nanoseconds; the set is trimmed and counted in one round trip.
type AttemptThrottleRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewAttemptThrottleRepository constructs a throttle using the provided Redis client.
func NewAttemptThrottleRepository(client *redis.Client, keyPrefix string) *AttemptThrottleRepository {
	return &AttemptThrottleRepository{client: client, keyPrefix: keyPrefix}
}

// Take counts the attempts inside the window ending at the given instant and
// records a new one unless the limit is already spent. The set's TTL is twice
// the window, so idle keys disappear without a sweeper.
func (r *AttemptThrottleRepository) Take(ctx context.Context, key string, limit int, window time.Duration, at time.Time) (port.ThrottleDecision, error) {
	if limit <= 0 || window <= 0 {
		return port.ThrottleDecision{}, fmt.Errorf("throttle: limit and window must be positive")
	}

	redisKey := r.key(key)
	cutoff := at.Add(-window).UnixNano()

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(cutoff, 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return port.ThrottleDecision{}, fmt.Errorf("throttle: read window: %w", err)
	}

	decision := port.ThrottleDecision{
		Limit:   limit,
		ResetAt: at.Add(window),
	}
	if oldest := oldestCmd.Val(); len(oldest) == 1 {
		decision.ResetAt = time.Unix(0, int64(oldest[0].Score)).Add(window)
	}

	count := int(countCmd.Val())
	if count >= limit {
		return decision, nil
	}

	record := r.client.TxPipeline()
	record.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(at.UnixNano()),
		Member: at.UnixNano(),
	})
	record.Expire(ctx, redisKey, 2*window)
	if _, err := record.Exec(ctx); err != nil {
		return port.ThrottleDecision{}, fmt.Errorf("throttle: record attempt: %w", err)
	}

	decision.Allowed = true
	decision.Remaining = limit - count - 1
	if count == 0 {
		decision.ResetAt = at.Add(window)
	}

	return decision, nil
}

func (r *AttemptThrottleRepository) key(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.keyPrefix, key)
}

var _ port.AttemptThrottle = (*AttemptThrottleRepository)(nil)
