package port

import (
	"context"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
)

// UserDirectory exposes the durable user store. It is the source of truth for
// ban and confirmation state; the session authority reads it only on cache miss.
type UserDirectory interface {
	Create(ctx context.Context, user domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// SetRefreshToken unconditionally stores the refresh token for the user
	// identified by email. An empty token clears the stored value.
	SetRefreshToken(ctx context.Context, email string, token string) error
	// RotateRefreshToken replaces the stored refresh token only if it still
	// equals previous. Returns false when the compare failed, which means a
	// concurrent rotation won the race.
	RotateRefreshToken(ctx context.Context, email string, previous, next string) (bool, error)
	SetBanned(ctx context.Context, email string, banned bool) error
	SetConfirmed(ctx context.Context, email string) error
	// SetPasswordHash replaces the stored credential. Session invalidation is
	// the caller's responsibility.
	SetPasswordHash(ctx context.Context, email string, hash string) error
}
