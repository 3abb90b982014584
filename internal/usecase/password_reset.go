package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/core/port"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/logger"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/security"
	"github.com/bohdanboiprav/photoshare-app/internal/repository"
)

// PasswordResetService coordinates the forgot-password flow: a reset-scoped
// token goes out on an event, and redeeming it replaces the credential and
// kills the account's refresh token. Email delivery belongs to the
// notification service.
type PasswordResetService struct {
	users     port.UserDirectory
	blacklist port.TokenBlacklist
	events    port.EventPublisher
	codec     TokenCodec
	hasher    PasswordHasher

	now func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService instance.
func NewPasswordResetService(
	users port.UserDirectory,
	blacklist port.TokenBlacklist,
	events port.EventPublisher,
	codec TokenCodec,
	hasher PasswordHasher,
) (*PasswordResetService, error) {
	if users == nil {
		return nil, fmt.Errorf("user directory is required")
	}
	if blacklist == nil {
		return nil, fmt.Errorf("token blacklist is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}

	return &PasswordResetService{
		users:     users,
		blacklist: blacklist,
		events:    events,
		codec:     codec,
		hasher:    hasher,
		now:       time.Now,
	}, nil
}

// Request issues a reset-scoped token for the account and publishes it for
// delivery. Unknown addresses return ErrNotFound.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
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

	if s.events == nil {
		return nil
	}

	token, claims, err := s.codec.Issue(user.Email, domain.ScopeReset)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	event := domain.PasswordResetRequestedEvent{
		EventID:     uuid.NewString(),
		UserID:      user.ID,
		Nickname:    user.Nickname,
		MaskedEmail: logger.MaskEmail(user.Email),
		ResetToken:  token,
		RequestedAt: s.now().UTC(),
		ExpiresAt:   claims.ExpiresAt,
	}
	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("publish password reset request failed", zap.Error(err))
	}

	return nil
}

// Confirm redeems a reset token and replaces the account's password. The
// token is single use: redeeming blacklists it for its remaining lifetime,
// and the check fails closed when the blacklist is unreachable. The stored
// refresh token is cleared so open sessions die at their next refresh.
func (s *PasswordResetService) Confirm(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}

	claims, err := s.codec.Decode(token, domain.ScopeReset)
	if err != nil {
		return ErrInvalidToken
	}

	revoked, err := s.blacklist.Revoked(ctx, claims.Subject, domain.ScopeReset, token)
	if err != nil {
		logger.WithContext(ctx).Error("reset blacklist check failed", zap.Error(err))
		return ErrServiceUnavailable
	}
	if revoked {
		return ErrInvalidToken
	}

	user, err := s.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	validator := security.NewRegistrationPasswordValidator(user.Nickname, user.Email)
	if err := validator.Validate(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.SetPasswordHash(ctx, user.Email, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	// The old credential may be compromised; the stored refresh token goes
	// with it so nobody can keep a session alive past the access TTL.
	if err := s.users.SetRefreshToken(ctx, user.Email, ""); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	now := s.now()
	if remaining := claims.Remaining(now); remaining > 0 {
		if err := s.blacklist.Add(ctx, claims.Subject, domain.ScopeReset, token, remaining); err != nil {
			logger.WithContext(ctx).Error("blacklist reset token failed", zap.Error(err))
			return ErrServiceUnavailable
		}
	}

	s.publishPasswordChanged(ctx, user.ID, user.Email, now)

	return nil
}

func (s *PasswordResetService) publishPasswordChanged(ctx context.Context, userID, subject string, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		Subject:   subject,
		ChangedAt: at.UTC(),
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("publish password changed event failed", zap.Error(err))
	}
}
