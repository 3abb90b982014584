package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/core/port"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes user.registered events. The confirmation
// token rides along so the notification service can build the email link.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID            string    `json:"user_id"`
		Nickname          string    `json:"nickname"`
		MaskedEmail       string    `json:"masked_email"`
		ConfirmationToken string    `json:"confirmation_token"`
		RegisteredAt      time.Time `json:"registered_at"`
		ExpiresAt         time.Time `json:"expires_at"`
	}{
		UserID:            event.UserID,
		Nickname:          event.Nickname,
		MaskedEmail:       event.MaskedEmail,
		ConfirmationToken: event.ConfirmationToken,
		RegisteredAt:      event.RegisteredAt.UTC(),
		ExpiresAt:         event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "user.registered", event.UserID, event.RegisteredAt, payload)
}

// PublishEmailConfirmationRequested publishes user.confirmation_requested
// events when an unconfirmed account asks for the email to be sent again.
func (p *EventPublisher) PublishEmailConfirmationRequested(ctx context.Context, event domain.EmailConfirmationRequestedEvent) error {
	payload := struct {
		UserID            string    `json:"user_id"`
		Nickname          string    `json:"nickname"`
		MaskedEmail       string    `json:"masked_email"`
		ConfirmationToken string    `json:"confirmation_token"`
		RequestedAt       time.Time `json:"requested_at"`
		ExpiresAt         time.Time `json:"expires_at"`
	}{
		UserID:            event.UserID,
		Nickname:          event.Nickname,
		MaskedEmail:       event.MaskedEmail,
		ConfirmationToken: event.ConfirmationToken,
		RequestedAt:       event.RequestedAt.UTC(),
		ExpiresAt:         event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "user.confirmation_requested", event.UserID, event.RequestedAt, payload)
}

// PublishPasswordResetRequested publishes user.password_reset_requested
// events. The reset token rides along for the notification service to build
// the reset link.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		UserID      string    `json:"user_id"`
		Nickname    string    `json:"nickname"`
		MaskedEmail string    `json:"masked_email"`
		ResetToken  string    `json:"reset_token"`
		RequestedAt time.Time `json:"requested_at"`
		ExpiresAt   time.Time `json:"expires_at"`
	}{
		UserID:      event.UserID,
		Nickname:    event.Nickname,
		MaskedEmail: event.MaskedEmail,
		ResetToken:  event.ResetToken,
		RequestedAt: event.RequestedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "user.password_reset_requested", event.UserID, event.RequestedAt, payload)
}

// PublishPasswordChanged publishes user.password_changed events after a
// completed reset.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		Subject   string    `json:"subject"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		UserID:    event.UserID,
		Subject:   event.Subject,
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "user.password_changed", event.UserID, event.ChangedAt, payload)
}

// PublishUserLoggedOut publishes session.logged_out events. The session
// authority only knows the token subject at logout, so the envelope carries
// no user id for this event type.
func (p *EventPublisher) PublishUserLoggedOut(ctx context.Context, event domain.UserLoggedOutEvent) error {
	payload := struct {
		Subject     string    `json:"subject"`
		LoggedOutAt time.Time `json:"logged_out_at"`
	}{
		Subject:     event.Subject,
		LoggedOutAt: event.LoggedOutAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "session.logged_out", "", event.LoggedOutAt, payload)
}

// PublishBanStateChanged publishes user.ban_state_changed events.
func (p *EventPublisher) PublishBanStateChanged(ctx context.Context, event domain.UserBanStateChangedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		Subject   string    `json:"subject"`
		Banned    bool      `json:"banned"`
		ChangedBy string    `json:"changed_by"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		UserID:    event.UserID,
		Subject:   event.Subject,
		Banned:    event.Banned,
		ChangedBy: event.ChangedBy,
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "user.ban_state_changed", event.UserID, event.ChangedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
