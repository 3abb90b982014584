package domain

import "time"

// TokenScope distinguishes the token kinds minted by the codec. A token of one
// scope can never be used where another scope is expected.
type TokenScope string

const (
	// ScopeAccess marks short-lived tokens presented on every request.
	ScopeAccess TokenScope = "access"
	// ScopeRefresh marks long-lived tokens exchanged for new pairs.
	ScopeRefresh TokenScope = "refresh"
	// ScopeVerify marks single-purpose email confirmation tokens.
	ScopeVerify TokenScope = "verify"
	// ScopeReset marks single-use password reset tokens.
	ScopeReset TokenScope = "reset"
)

// TokenPair groups the two tokens returned from login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenClaims is the decoded, signature-verified content of a token.
type TokenClaims struct {
	Subject   string
	Scope     TokenScope
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Remaining returns the token lifetime left at the given instant, never negative.
func (c TokenClaims) Remaining(now time.Time) time.Duration {
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
