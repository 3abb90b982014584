package port

import (
	"context"
	"time"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
)

// TokenBlacklist records revoked tokens keyed by (subject, scope). An entry
// holds the exact token string that was revoked and expires no later than the
// token's own expiry, after which natural expiry rejects the token anyway.
type TokenBlacklist interface {
	Add(ctx context.Context, subject string, scope domain.TokenScope, token string, ttl time.Duration) error
	// Revoked reports whether the presented token matches the blacklist entry
	// for the subject and scope. Absent entries are not an error.
	Revoked(ctx context.Context, subject string, scope domain.TokenScope, token string) (bool, error)
	Remove(ctx context.Context, subject string, scope domain.TokenScope) error
}
