package port

import (
	"context"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishEmailConfirmationRequested(ctx context.Context, event domain.EmailConfirmationRequestedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishUserLoggedOut(ctx context.Context, event domain.UserLoggedOutEvent) error
	PublishBanStateChanged(ctx context.Context, event domain.UserBanStateChangedEvent) error
}
