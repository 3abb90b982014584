package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/core/port"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"nickname":      event.Nickname,
		"masked_email":  event.MaskedEmail,
		"registered_at": event.RegisteredAt,
		"expires_at":    event.ExpiresAt,
	}
	p.logEvent("user.registered", event.UserID, event.RegisteredAt, payload)
	return nil
}

// PublishEmailConfirmationRequested logs user.confirmation_requested events.
func (p *StubPublisher) PublishEmailConfirmationRequested(_ context.Context, event domain.EmailConfirmationRequestedEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"nickname":     event.Nickname,
		"masked_email": event.MaskedEmail,
		"requested_at": event.RequestedAt,
		"expires_at":   event.ExpiresAt,
	}
	p.logEvent("user.confirmation_requested", event.UserID, event.RequestedAt, payload)
	return nil
}

// PublishPasswordResetRequested logs user.password_reset_requested events.
// The reset token itself is never written to the log.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"masked_email": event.MaskedEmail,
		"requested_at": event.RequestedAt,
		"expires_at":   event.ExpiresAt,
	}
	p.logEvent("user.password_reset_requested", event.UserID, event.RequestedAt, payload)
	return nil
}

// PublishPasswordChanged logs user.password_changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"subject":    logger.MaskEmail(event.Subject),
		"changed_at": event.ChangedAt,
	}
	p.logEvent("user.password_changed", event.UserID, event.ChangedAt, payload)
	return nil
}

// PublishUserLoggedOut logs session.logged_out events.
func (p *StubPublisher) PublishUserLoggedOut(_ context.Context, event domain.UserLoggedOutEvent) error {
	payload := map[string]any{
		"subject":       logger.MaskEmail(event.Subject),
		"logged_out_at": event.LoggedOutAt,
	}
	p.logEvent("session.logged_out", "", event.LoggedOutAt, payload)
	return nil
}

// PublishBanStateChanged logs user.ban_state_changed events.
func (p *StubPublisher) PublishBanStateChanged(_ context.Context, event domain.UserBanStateChangedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"subject":    event.Subject,
		"banned":     event.Banned,
		"changed_by": event.ChangedBy,
		"changed_at": event.ChangedAt,
	}
	p.logEvent("user.ban_state_changed", event.UserID, event.ChangedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
