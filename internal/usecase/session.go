package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/core/port"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/logger"
	"github.com/bohdanboiprav/photoshare-app/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotConfirmed indicates the account exists but the email was never confirmed.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrInvalidToken indicates a token that is malformed, expired, revoked, or superseded.
	ErrInvalidToken = errors.New("invalid token")
	// ErrAccountBanned indicates the account is banned from the platform.
	ErrAccountBanned = errors.New("account banned")
	// ErrNotFound indicates the referenced account no longer exists.
	ErrNotFound = errors.New("user not found")
	// ErrServiceUnavailable indicates a dependency failed in a way that cannot be
	// compensated without weakening revocation guarantees.
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
	// ErrAlreadyExists indicates an account with the same email or nickname exists.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrAlreadyConfirmed indicates the account's email is already confirmed.
	ErrAlreadyConfirmed = errors.New("email already confirmed")
)

// TokenCodec mints and verifies the service's signed tokens.
type TokenCodec interface {
	Issue(subject string, scope domain.TokenScope) (string, domain.TokenClaims, error)
	IssuePair(subject string) (domain.TokenPair, error)
	Decode(token string, expected domain.TokenScope) (*domain.TokenClaims, error)
}

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// SessionService owns the session lifecycle: credential login, token refresh
// with rotation, request authentication, logout, and ban state transitions.
type SessionService struct {
	users        port.UserDirectory
	blacklist    port.TokenBlacklist
	cache        port.PrincipalCache
	events       port.EventPublisher
	codec        TokenCodec
	hasher       PasswordHasher
	policy       domain.CacheDegradationPolicy
	principalTTL time.Duration

	// collapses concurrent directory lookups for the same subject on cache miss
	lookups singleflight.Group

	now func() time.Time
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(
	users port.UserDirectory,
	blacklist port.TokenBlacklist,
	cache port.PrincipalCache,
	events port.EventPublisher,
	codec TokenCodec,
	hasher PasswordHasher,
	policy domain.CacheDegradationPolicy,
	principalTTL time.Duration,
) (*SessionService, error) {
	if users == nil {
		return nil, fmt.Errorf("user directory is required")
	}
	if blacklist == nil {
		return nil, fmt.Errorf("token blacklist is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("principal cache is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if principalTTL <= 0 {
		principalTTL = 5 * time.Minute
	}

	return &SessionService{
		users:        users,
		blacklist:    blacklist,
		cache:        cache,
		events:       events,
		codec:        codec,
		hasher:       hasher,
		policy:       policy,
		principalTTL: principalTTL,
		now:          time.Now,
	}, nil
}

// Login verifies the credentials and issues a fresh token pair. Unknown email
// and wrong password produce the same error so callers cannot probe for
// registered addresses.
func (s *SessionService) Login(ctx context.Context, email, password string) (domain.TokenPair, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	if !user.Confirmed {
		return domain.TokenPair{}, ErrEmailNotConfirmed
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	if user.Banned {
		return domain.TokenPair{}, ErrAccountBanned
	}

	pair, err := s.codec.IssuePair(user.Email)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue token pair: %w", err)
	}

	if err := s.users.SetRefreshToken(ctx, user.Email, pair.RefreshToken); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair and rotates the
// stored token. Presenting a refresh token that does not match the stored one
// clears the stored token entirely, so both the old and the reused token are
// dead and the account must log in again.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.TokenPair{}, ErrInvalidToken
	}

	claims, err := s.codec.Decode(refreshToken, domain.ScopeRefresh)
	if err != nil {
		return domain.TokenPair{}, ErrInvalidToken
	}

	revoked, err := s.blacklist.Revoked(ctx, claims.Subject, domain.ScopeRefresh, refreshToken)
	if err != nil {
		logger.WithContext(ctx).Error("refresh blacklist check failed", zap.Error(err))
		return domain.TokenPair{}, ErrServiceUnavailable
	}
	if revoked {
		return domain.TokenPair{}, ErrInvalidToken
	}

	user, err := s.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidToken
		}
		return domain.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	if user.Banned {
		return domain.TokenPair{}, ErrAccountBanned
	}

	if user.RefreshToken != refreshToken {
		// Reuse of a rotated token. Kill the stored one too: if the presented
		// token leaked, the holder of the legitimate token must re-login.
		if err := s.users.SetRefreshToken(ctx, user.Email, ""); err != nil && !errors.Is(err, repository.ErrNotFound) {
			logger.WithContext(ctx).Error("clear refresh token failed",
				zap.String("email", logger.MaskEmail(user.Email)), zap.Error(err))
		}
		return domain.TokenPair{}, ErrInvalidToken
	}

	pair, err := s.codec.IssuePair(user.Email)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue token pair: %w", err)
	}

	rotated, err := s.users.RotateRefreshToken(ctx, user.Email, refreshToken, pair.RefreshToken)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		// A concurrent refresh won the compare-and-set. Exactly one caller
		// gets a pair; this one retries from login or with the winner's token.
		return domain.TokenPair{}, ErrInvalidToken
	}

	return pair, nil
}

// Authenticate resolves an access token into the principal it represents.
// Revocation checks fail closed; the principal cache fails open to the
// directory because it is an optimization, not a source of truth.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (*domain.Principal, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, ErrInvalidToken
	}

	claims, err := s.codec.Decode(accessToken, domain.ScopeAccess)
	if err != nil {
		return nil, ErrInvalidToken
	}

	revoked, err := s.blacklist.Revoked(ctx, claims.Subject, domain.ScopeAccess, accessToken)
	if err != nil {
		logger.WithContext(ctx).Error("access blacklist check failed", zap.Error(err))
		return nil, ErrServiceUnavailable
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	principal, err := s.cache.Get(ctx, claims.Subject)
	if err == nil {
		if principal.Banned {
			return nil, ErrAccountBanned
		}
		return principal, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logger.WithContext(ctx).Warn("principal cache read failed, falling back to directory",
			zap.String("email", logger.MaskEmail(claims.Subject)), zap.Error(err))
	}

	return s.resolvePrincipal(ctx, claims.Subject)
}

// resolvePrincipal loads the subject from the directory and repopulates the
// cache. Concurrent misses for the same subject share a single lookup.
func (s *SessionService) resolvePrincipal(ctx context.Context, subject string) (*domain.Principal, error) {
	result, err, _ := s.lookups.Do(subject, func() (any, error) {
		user, err := s.users.FindByEmail(ctx, subject)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("lookup user: %w", err)
		}

		// Banned and deleted accounts never enter the cache.
		if user.Banned {
			return nil, ErrAccountBanned
		}

		principal := domain.NewPrincipal(*user, s.now())
		if err := s.cache.Set(ctx, subject, principal, s.principalTTL); err != nil {
			if s.policy.IsStrict() {
				logger.WithContext(ctx).Error("principal cache write failed",
					zap.String("email", logger.MaskEmail(subject)), zap.Error(err))
				return nil, ErrServiceUnavailable
			}
			logger.WithContext(ctx).Warn("principal cache write failed, continuing",
				zap.String("email", logger.MaskEmail(subject)), zap.Error(err))
		}

		return &principal, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*domain.Principal), nil
}

// Logout blacklists both tokens for their remaining lifetimes and evicts the
// cached principal. The access token must still be valid; an expired or
// unverifiable refresh token is skipped since it can no longer be redeemed.
func (s *SessionService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	accessClaims, err := s.codec.Decode(accessToken, domain.ScopeAccess)
	if err != nil {
		return ErrInvalidToken
	}

	now := s.now()
	if remaining := accessClaims.Remaining(now); remaining > 0 {
		if err := s.blacklist.Add(ctx, accessClaims.Subject, domain.ScopeAccess, accessToken, remaining); err != nil {
			logger.WithContext(ctx).Error("blacklist access token failed", zap.Error(err))
			return ErrServiceUnavailable
		}
	}

	if refreshClaims, err := s.codec.Decode(refreshToken, domain.ScopeRefresh); err == nil && refreshClaims.Subject == accessClaims.Subject {
		if remaining := refreshClaims.Remaining(now); remaining > 0 {
			if err := s.blacklist.Add(ctx, refreshClaims.Subject, domain.ScopeRefresh, refreshToken, remaining); err != nil {
				logger.WithContext(ctx).Error("blacklist refresh token failed", zap.Error(err))
				return ErrServiceUnavailable
			}
		}
	}

	if err := s.cache.Delete(ctx, accessClaims.Subject); err != nil {
		if s.policy.IsStrict() {
			logger.WithContext(ctx).Error("principal cache eviction failed", zap.Error(err))
			return ErrServiceUnavailable
		}
		logger.WithContext(ctx).Warn("principal cache eviction failed, entry expires naturally",
			zap.String("email", logger.MaskEmail(accessClaims.Subject)), zap.Error(err))
	}

	s.publishLogout(ctx, accessClaims.Subject, now)

	return nil
}

// Ban marks the account banned, clears its stored refresh token, and evicts
// the cached principal so existing access tokens stop resolving immediately.
func (s *SessionService) Ban(ctx context.Context, email, changedBy string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrNotFound
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := s.users.SetBanned(ctx, email, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set banned: %w", err)
	}

	if err := s.users.SetRefreshToken(ctx, email, ""); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	// Eviction is what makes the ban take effect within the token lifetime,
	// so a failure here is never downgraded to a warning.
	if err := s.cache.Delete(ctx, email); err != nil {
		logger.WithContext(ctx).Error("principal cache eviction failed during ban",
			zap.String("email", logger.MaskEmail(email)), zap.Error(err))
		return ErrServiceUnavailable
	}

	s.publishBanStateChanged(ctx, user.ID, email, true, changedBy)

	return nil
}

// Unban clears the ban flag. The account logs in again with its credentials;
// previously issued tokens stay dead.
func (s *SessionService) Unban(ctx context.Context, email, changedBy string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrNotFound
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := s.users.SetBanned(ctx, email, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set banned: %w", err)
	}

	s.publishBanStateChanged(ctx, user.ID, email, false, changedBy)

	return nil
}

func (s *SessionService) publishLogout(ctx context.Context, subject string, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.UserLoggedOutEvent{
		EventID:     uuid.NewString(),
		Subject:     subject,
		LoggedOutAt: at.UTC(),
	}
	if err := s.events.PublishUserLoggedOut(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("publish logout event failed", zap.Error(err))
	}
}

func (s *SessionService) publishBanStateChanged(ctx context.Context, userID, subject string, banned bool, changedBy string) {
	if s.events == nil {
		return
	}

	event := domain.UserBanStateChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		Subject:   subject,
		Banned:    banned,
		ChangedBy: changedBy,
		ChangedAt: s.now().UTC(),
	}
	if err := s.events.PublishBanStateChanged(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("publish ban state event failed", zap.Error(err))
	}
}
