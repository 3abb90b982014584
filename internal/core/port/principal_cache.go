package port

import (
	"context"
	"time"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
)

// PrincipalCache is a read-through cache of user snapshots keyed by subject.
// It is an optimization only: a miss or any read failure falls back to the
// user directory, and entries expire within the configured staleness window.
type PrincipalCache interface {
	Get(ctx context.Context, subject string) (*domain.Principal, error)
	Set(ctx context.Context, subject string, principal domain.Principal, ttl time.Duration) error
	Delete(ctx context.Context, subject string) error
}
