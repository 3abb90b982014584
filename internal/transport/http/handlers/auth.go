package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bohdanboiprav/photoshare-app/internal/infra/security"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/telemetry"
	"github.com/bohdanboiprav/photoshare-app/internal/transport/http/middleware"
	"github.com/bohdanboiprav/photoshare-app/internal/usecase"
)

// AuthHandler exposes the session, registration and password reset endpoints.
type AuthHandler struct {
	sessions      *usecase.SessionService
	registration  *usecase.RegistrationService
	passwordReset *usecase.PasswordResetService
	metrics       *telemetry.Provider
	accessTTL     time.Duration
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(
	sessions *usecase.SessionService,
	registration *usecase.RegistrationService,
	passwordReset *usecase.PasswordResetService,
	metrics *telemetry.Provider,
	accessTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		sessions:      sessions,
		registration:  registration,
		passwordReset: passwordReset,
		metrics:       metrics,
		accessTTL:     accessTTL,
	}
}

// RouteMiddlewares groups the per-endpoint middleware chains. The throttled
// chains guard the endpoints an attacker can spend attempts against.
type RouteMiddlewares struct {
	Auth    gin.HandlerFunc
	Signup  []gin.HandlerFunc
	Login   []gin.HandlerFunc
	Refresh []gin.HandlerFunc
	Reset   []gin.HandlerFunc
}

// RegisterRoutes binds authentication routes, applying the configured
// middleware ahead of each handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, mw RouteMiddlewares) {
	r.POST("/signup", appendHandler(mw.Signup, h.signup)...)
	r.POST("/login", appendHandler(mw.Login, h.login)...)
	r.POST("/refresh", appendHandler(mw.Refresh, h.refresh)...)
	r.POST("/logout", mw.Auth, h.logout)
	r.POST("/confirm", h.confirmEmail)
	r.POST("/resend-confirmation", appendHandler(mw.Reset, h.resendConfirmation)...)
	r.POST("/reset-password", appendHandler(mw.Reset, h.resetPassword)...)
	r.POST("/reset-password/confirm", appendHandler(mw.Reset, h.resetPasswordConfirm)...)
}

func appendHandler(chain []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := append([]gin.HandlerFunc{}, chain...)
	return append(out, handler)
}

func (h *AuthHandler) signup(c *gin.Context) {
	if h.registration == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "registration service unavailable"))
		return
	}

	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid signup payload"))
		return
	}

	user, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Nickname:  req.Nickname,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		var policyErr *security.PasswordValidationError
		if errors.As(err, &policyErr) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
			return
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, NewErrorResponse(c, "email or nickname already registered"))
			return
		}

		switch {
		case errors.Is(err, usecase.ErrAlreadyExists):
			c.JSON(http.StatusConflict, NewErrorResponse(c, "email already registered"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to register user"))
		}
		return
	}

	c.JSON(http.StatusCreated, SignupResponse{
		User:    newUserSummary(*user),
		Message: "confirmation email on its way",
	})
}

func (h *AuthHandler) login(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "session service unavailable"))
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	pair, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidCredentials):
			h.metrics.CountLogin("invalid_credentials")
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credentials"))
		case errors.Is(err, usecase.ErrEmailNotConfirmed):
			h.metrics.CountLogin("not_confirmed")
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "email not confirmed"))
		case errors.Is(err, usecase.ErrAccountBanned):
			h.metrics.CountLogin("banned")
			c.JSON(http.StatusForbidden, NewErrorResponse(c, "account banned"))
		case errors.Is(err, usecase.ErrServiceUnavailable):
			h.metrics.CountLogin("unavailable")
			c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "login temporarily unavailable"))
		default:
			h.metrics.CountLogin("error")
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "login failed"))
		}
		return
	}

	h.metrics.CountLogin("success")
	c.JSON(http.StatusOK, h.newTokenPairResponse(pair.AccessToken, pair.RefreshToken))
}

func (h *AuthHandler) refresh(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "session service unavailable"))
		return
	}

	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidToken):
			h.metrics.CountRefresh("invalid_token")
		case errors.Is(err, usecase.ErrAccountBanned):
			h.metrics.CountRefresh("banned")
		case errors.Is(err, usecase.ErrServiceUnavailable):
			h.metrics.CountRefresh("unavailable")
		default:
			h.metrics.CountRefresh("error")
		}

		RespondWithMappedError(c, err, "failed to refresh token",
			ErrorCase{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
			ErrorCase{Err: usecase.ErrAccountBanned, Status: http.StatusForbidden, Message: "account banned"},
			ErrorCase{Err: usecase.ErrServiceUnavailable, Status: http.StatusServiceUnavailable, Message: "refresh temporarily unavailable"},
		)
		return
	}

	h.metrics.CountRefresh("success")
	c.JSON(http.StatusOK, h.newTokenPairResponse(pair.AccessToken, pair.RefreshToken))
}

func (h *AuthHandler) logout(c *gin.Context) {
	accessToken, ok := middleware.GetAccessToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), accessToken, req.RefreshToken); err != nil {
		RespondWithMappedError(c, err, "failed to log out",
			ErrorCase{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid access token"},
			ErrorCase{Err: usecase.ErrServiceUnavailable, Status: http.StatusServiceUnavailable, Message: "logout temporarily unavailable"},
		)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) confirmEmail(c *gin.Context) {
	if h.registration == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "registration service unavailable"))
		return
	}

	var req ConfirmEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token is required"))
		return
	}

	if err := h.registration.ConfirmEmail(c.Request.Context(), req.Token); err != nil {
		RespondWithMappedError(c, err, "failed to confirm email",
			ErrorCase{Err: usecase.ErrInvalidToken, Status: http.StatusBadRequest, Message: "invalid or expired confirmation token"},
			ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "account not found"},
		)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "email confirmed"})
}

func (h *AuthHandler) resendConfirmation(c *gin.Context) {
	if h.registration == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "registration service unavailable"))
		return
	}

	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "a valid email is required"))
		return
	}

	err := h.registration.ResendConfirmation(c.Request.Context(), req.Email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, MessageResponse{Message: "check your email for confirmation"})
	case errors.Is(err, usecase.ErrAlreadyConfirmed):
		c.JSON(http.StatusOK, MessageResponse{Message: "email already confirmed"})
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "account not found"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to resend confirmation"))
	}
}

func (h *AuthHandler) resetPassword(c *gin.Context) {
	if h.passwordReset == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "password reset unavailable"))
		return
	}

	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "a valid email is required"))
		return
	}

	if err := h.passwordReset.Request(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err, "failed to request password reset",
			ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "account not found"},
		)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "check your email for the reset link"})
}

func (h *AuthHandler) resetPasswordConfirm(c *gin.Context) {
	if h.passwordReset == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "password reset unavailable"))
		return
	}

	var req ResetPasswordConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token and password are required"))
		return
	}

	if err := h.passwordReset.Confirm(c.Request.Context(), req.Token, req.Password); err != nil {
		var policyErr *security.PasswordValidationError
		if errors.As(err, &policyErr) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
			return
		}

		RespondWithMappedError(c, err, "failed to reset password",
			ErrorCase{Err: usecase.ErrInvalidToken, Status: http.StatusBadRequest, Message: "invalid or expired reset token"},
			ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "account not found"},
			ErrorCase{Err: usecase.ErrServiceUnavailable, Status: http.StatusServiceUnavailable, Message: "password reset temporarily unavailable"},
		)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}

// Me returns the principal resolved by the auth middleware.
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	c.JSON(http.StatusOK, newPrincipalResponse(principal))
}

func (h *AuthHandler) newTokenPairResponse(accessToken, refreshToken string) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(h.accessTTL.Seconds()),
	}
}
