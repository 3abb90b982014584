package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes the public view of an account returned by the API.
type UserSummary struct {
	ID        string      `json:"id"`
	Nickname  string      `json:"nickname"`
	FirstName string      `json:"first_name,omitempty"`
	LastName  string      `json:"last_name,omitempty"`
	Email     string      `json:"email"`
	AvatarURL string      `json:"avatar_url,omitempty"`
	Role      domain.Role `json:"role"`
	Confirmed bool        `json:"confirmed"`
}

// SignupRequest defines the account registration payload.
type SignupRequest struct {
	Nickname  string `json:"nickname" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
}

// SignupResponse contains the created account and next steps.
type SignupResponse struct {
	User    UserSummary `json:"user"`
	Message string      `json:"message"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenPairResponse carries the tokens issued by login and refresh.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshRequest represents the payload to refresh an access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest carries the refresh token to invalidate alongside the
// bearer access token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ConfirmEmailRequest holds the confirmation token from the signup email.
type ConfirmEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// EmailRequest carries a bare email address, used by the resend-confirmation
// and password reset request endpoints.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordConfirmRequest redeems a reset token with the new password.
type ResetPasswordConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// PrincipalResponse describes the identity resolved from the access token.
type PrincipalResponse struct {
	UserID    string      `json:"user_id"`
	Email     string      `json:"email"`
	Nickname  string      `json:"nickname"`
	Role      domain.Role `json:"role"`
	Confirmed bool        `json:"confirmed"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newUserSummary converts a domain user to a summary suitable for API responses.
func newUserSummary(user domain.User) UserSummary {
	return UserSummary{
		ID:        user.ID,
		Nickname:  user.Nickname,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Role:      user.Role,
		Confirmed: user.Confirmed,
	}
}

func newPrincipalResponse(principal *domain.Principal) PrincipalResponse {
	return PrincipalResponse{
		UserID:    principal.UserID,
		Email:     principal.Email,
		Nickname:  principal.Nickname,
		Role:      principal.Role,
		Confirmed: principal.Confirmed,
	}
}
