package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
)

// ErrTokenExpired indicates a well-formed token whose validity window has passed.
var ErrTokenExpired = errors.New("jwt: token expired")

// ErrTokenInvalid indicates a token that failed signature, format, or scope checks.
var ErrTokenInvalid = errors.New("jwt: token invalid")

// TokenCodecConfig configures token signing and lifetimes.
type TokenCodecConfig struct {
	Secret     string
	Algorithm  string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	VerifyTTL  time.Duration
	ResetTTL   time.Duration
}

// tokenClaims is the wire shape of every token the codec mints.
type tokenClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenCodec mints and verifies HMAC-signed tokens carrying a subject, a
// scope, and a validity window. All tokens share one secret; scope alone
// separates access, refresh, verify, and reset tokens.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
	issuer string
	ttls   map[domain.TokenScope]time.Duration
	now    func() time.Time
}

// NewTokenCodec validates the configuration and builds a codec.
func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("jwt: signing secret is required")
	}

	method := jwt.GetSigningMethod(strings.ToUpper(strings.TrimSpace(cfg.Algorithm)))
	if method == nil {
		return nil, fmt.Errorf("jwt: unknown signing algorithm %q", cfg.Algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("jwt: algorithm %q is not an HMAC method", cfg.Algorithm)
	}

	ttls := map[domain.TokenScope]time.Duration{
		domain.ScopeAccess:  cfg.AccessTTL,
		domain.ScopeRefresh: cfg.RefreshTTL,
		domain.ScopeVerify:  cfg.VerifyTTL,
		domain.ScopeReset:   cfg.ResetTTL,
	}
	for scope, ttl := range ttls {
		if ttl <= 0 {
			return nil, fmt.Errorf("jwt: %s token TTL must be positive", scope)
		}
	}

	return &TokenCodec{
		secret: []byte(cfg.Secret),
		method: method,
		issuer: strings.TrimSpace(cfg.Issuer),
		ttls:   ttls,
		now:    time.Now,
	}, nil
}

// Issue mints a token for the subject with the scope's configured lifetime and
// returns the signed string along with its claims.
func (c *TokenCodec) Issue(subject string, scope domain.TokenScope) (string, domain.TokenClaims, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", domain.TokenClaims{}, fmt.Errorf("jwt: subject is required")
	}

	ttl, ok := c.ttls[scope]
	if !ok {
		return "", domain.TokenClaims{}, fmt.Errorf("jwt: unknown scope %q", scope)
	}

	now := c.now().UTC().Truncate(time.Second)
	expires := now.Add(ttl)

	claims := &tokenClaims{
		Scope: string(scope),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", domain.TokenClaims{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, domain.TokenClaims{
		Subject:   subject,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: expires,
	}, nil
}

// IssuePair mints the access and refresh tokens returned from login and refresh.
func (c *TokenCodec) IssuePair(subject string) (domain.TokenPair, error) {
	access, _, err := c.Issue(subject, domain.ScopeAccess)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, _, err := c.Issue(subject, domain.ScopeRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Decode verifies the token's signature and validity window and requires its
// scope to equal expected. Expired tokens return ErrTokenExpired; every other
// failure, scope mismatch included, returns ErrTokenInvalid.
func (c *TokenCodec) Decode(token string, expected domain.TokenScope) (*domain.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return c.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrTokenInvalid, sanitizeJWTError(err))
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	if domain.TokenScope(claims.Scope) != expected {
		return nil, fmt.Errorf("%w: scope mismatch", ErrTokenInvalid)
	}
	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing claims", ErrTokenInvalid)
	}

	return &domain.TokenClaims{
		Subject:   claims.Subject,
		Scope:     expected,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// sanitizeJWTError keeps the library's failure category without echoing token material.
func sanitizeJWTError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad signature"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not valid yet"
	default:
		return "verification failed"
	}
}
