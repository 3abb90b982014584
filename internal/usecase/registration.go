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

// RegistrationService handles account creation and email confirmation.
type RegistrationService struct {
	users  port.UserDirectory
	events port.EventPublisher
	codec  TokenCodec
	hasher PasswordHasher

	now func() time.Time
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	users port.UserDirectory,
	events port.EventPublisher,
	codec TokenCodec,
	hasher PasswordHasher,
) (*RegistrationService, error) {
	if users == nil {
		return nil, fmt.Errorf("user directory is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}

	return &RegistrationService{
		users:  users,
		events: events,
		codec:  codec,
		hasher: hasher,
		now:    time.Now,
	}, nil
}

// RegisterInput carries the signup form fields.
type RegisterInput struct {
	Nickname  string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Register creates an unconfirmed account with the default role and publishes
// a user.registered event carrying the confirmation token. Delivery of the
// confirmation email is the notification service's job.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	nickname := strings.TrimSpace(input.Nickname)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if nickname == "" {
		return nil, fmt.Errorf("nickname is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}

	validator := security.NewRegistrationPasswordValidator(nickname, email)
	if err := validator.Validate(input.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Nickname:     nickname,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publishRegistered(ctx, user)

	sanitized := user
	sanitized.PasswordHash = ""

	return &sanitized, nil
}

// ConfirmEmail redeems a verify-scoped token and marks the account confirmed.
// Confirming an already confirmed account is a no-op.
func (s *RegistrationService) ConfirmEmail(ctx context.Context, token string) error {
	claims, err := s.codec.Decode(token, domain.ScopeVerify)
	if err != nil {
		return ErrInvalidToken
	}

	if err := s.users.SetConfirmed(ctx, claims.Subject); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("confirm email: %w", err)
	}

	return nil
}

// ResendConfirmation issues a fresh verify-scope token for an unconfirmed
// account and publishes it for delivery. Already confirmed accounts get
// ErrAlreadyConfirmed so the caller can say so instead of sending mail.
func (s *RegistrationService) ResendConfirmation(ctx context.Context, email string) error {
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

	if user.Confirmed {
		return ErrAlreadyConfirmed
	}

	if s.events == nil {
		return nil
	}

	token, claims, err := s.codec.Issue(user.Email, domain.ScopeVerify)
	if err != nil {
		return fmt.Errorf("issue confirmation token: %w", err)
	}

	event := domain.EmailConfirmationRequestedEvent{
		EventID:           uuid.NewString(),
		UserID:            user.ID,
		Nickname:          user.Nickname,
		MaskedEmail:       logger.MaskEmail(user.Email),
		ConfirmationToken: token,
		RequestedAt:       s.now().UTC(),
		ExpiresAt:         claims.ExpiresAt,
	}
	if err := s.events.PublishEmailConfirmationRequested(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("publish confirmation request failed", zap.Error(err))
	}

	return nil
}

func (s *RegistrationService) publishRegistered(ctx context.Context, user domain.User) {
	if s.events == nil {
		return
	}

	token, claims, err := s.codec.Issue(user.Email, domain.ScopeVerify)
	if err != nil {
		logger.WithContext(ctx).Error("issue confirmation token failed",
			zap.String("email", logger.MaskEmail(user.Email)), zap.Error(err))
		return
	}

	event := domain.UserRegisteredEvent{
		EventID:           uuid.NewString(),
		UserID:            user.ID,
		Nickname:          user.Nickname,
		MaskedEmail:       logger.MaskEmail(user.Email),
		ConfirmationToken: token,
		RegisteredAt:      user.CreatedAt,
		ExpiresAt:         claims.ExpiresAt,
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("publish registered event failed", zap.Error(err))
	}
}
