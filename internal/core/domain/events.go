package domain

import "time"

// UserRegisteredEvent is published after a successful signup so the
// notification service can deliver the confirmation email.
type UserRegisteredEvent struct {
	EventID           string
	UserID            string
	Nickname          string
	MaskedEmail       string
	ConfirmationToken string
	RegisteredAt      time.Time
	ExpiresAt         time.Time
}

// EmailConfirmationRequestedEvent is published when an unconfirmed account
// asks for the confirmation email to be sent again.
type EmailConfirmationRequestedEvent struct {
	EventID           string
	UserID            string
	Nickname          string
	MaskedEmail       string
	ConfirmationToken string
	RequestedAt       time.Time
	ExpiresAt         time.Time
}

// PasswordResetRequestedEvent carries the reset token for the notification
// service to embed in the reset link.
type PasswordResetRequestedEvent struct {
	EventID     string
	UserID      string
	Nickname    string
	MaskedEmail string
	ResetToken  string
	RequestedAt time.Time
	ExpiresAt   time.Time
}

// PasswordChangedEvent is published after a completed password reset.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	Subject   string
	ChangedAt time.Time
}

// UserLoggedOutEvent is published when a session is terminated and both
// tokens were blacklisted. The subject (email) identifies the account; the
// session authority never resolves a row just to decorate this event.
type UserLoggedOutEvent struct {
	EventID     string
	Subject     string
	LoggedOutAt time.Time
}

// UserBanStateChangedEvent is published for both ban and unban transitions.
type UserBanStateChangedEvent struct {
	EventID   string
	UserID    string
	Subject   string
	Banned    bool
	ChangedBy string
	ChangedAt time.Time
}
