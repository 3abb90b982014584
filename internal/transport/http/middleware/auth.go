package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/usecase"
)

const (
	// PrincipalKey is the context key under which the resolved principal is stored.
	PrincipalKey = "principal"
	// AccessTokenKey is the context key holding the raw bearer token.
	AccessTokenKey = "access_token"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// Authenticator resolves a bearer access token into the principal it represents.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.Principal, error)
}

// RequireAuth validates the Authorization header and stores the resolved
// principal in the request context.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrInvalidToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid or expired access token"))
			case errors.Is(err, usecase.ErrAccountBanned):
				c.AbortWithStatusJSON(http.StatusForbidden,
					newErrorResponse(c, "account banned"))
			case errors.Is(err, usecase.ErrNotFound):
				c.AbortWithStatusJSON(http.StatusNotFound,
					newErrorResponse(c, "account no longer exists"))
			case errors.Is(err, usecase.ErrServiceUnavailable):
				c.AbortWithStatusJSON(http.StatusServiceUnavailable,
					newErrorResponse(c, "authentication temporarily unavailable"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		c.Set(PrincipalKey, principal)
		c.Set(AccessTokenKey, token)
		SetAuthenticatedSubject(c, principal.Email)

		c.Next()
	}
}

// RequireRole checks that the authenticated principal has one of the given roles.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden,
			newErrorResponse(c, "insufficient permissions"))
	}
}

// GetPrincipal retrieves the authenticated principal from the context.
func GetPrincipal(c *gin.Context) (*domain.Principal, bool) {
	raw, exists := c.Get(PrincipalKey)
	if !exists {
		return nil, false
	}

	principal, ok := raw.(*domain.Principal)
	return principal, ok
}

// GetAccessToken retrieves the raw bearer token stored by RequireAuth.
func GetAccessToken(c *gin.Context) (string, bool) {
	raw, exists := c.Get(AccessTokenKey)
	if !exists {
		return "", false
	}

	token, ok := raw.(string)
	return token, ok
}
