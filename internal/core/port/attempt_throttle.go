package port

import (
	"context"
	"time"
)

// ThrottleDecision is the outcome of a single sliding-window check.
type ThrottleDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the oldest counted attempt leaves the window and one
	// more attempt becomes available.
	ResetAt time.Time
}

// AttemptThrottle bounds authentication attempts per client key. Take counts
// the attempts inside the window ending at the given instant, records a new
// one when the limit is not yet reached, and reports the decision. Keys are
// expected to be pre-hashed; the store must never see a raw client address.
type AttemptThrottle interface {
	Take(ctx context.Context, key string, limit int, window time.Duration, at time.Time) (ThrottleDecision, error)
}
