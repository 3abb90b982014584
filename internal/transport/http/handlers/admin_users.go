package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bohdanboiprav/photoshare-app/internal/transport/http/middleware"
	"github.com/bohdanboiprav/photoshare-app/internal/usecase"
)

// AdminUsersHandler exposes moderation endpoints for account ban state.
type AdminUsersHandler struct {
	sessions *usecase.SessionService
}

// NewAdminUsersHandler constructs a new handler instance.
func NewAdminUsersHandler(sessions *usecase.SessionService) *AdminUsersHandler {
	return &AdminUsersHandler{sessions: sessions}
}

// RegisterRoutes binds the moderation routes. The group is expected to carry
// authentication and role middleware already.
func (h *AdminUsersHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users/:email/ban", h.ban)
	r.POST("/users/:email/unban", h.unban)
}

func (h *AdminUsersHandler) ban(c *gin.Context) {
	h.setBanState(c, true)
}

func (h *AdminUsersHandler) unban(c *gin.Context) {
	h.setBanState(c, false)
}

func (h *AdminUsersHandler) setBanState(c *gin.Context, banned bool) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "session service unavailable"))
		return
	}

	email := strings.TrimSpace(c.Param("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	changedBy := ""
	if principal, ok := middleware.GetPrincipal(c); ok {
		changedBy = principal.Email
	}

	var err error
	if banned {
		err = h.sessions.Ban(c.Request.Context(), email, changedBy)
	} else {
		err = h.sessions.Unban(c.Request.Context(), email, changedBy)
	}
	if err != nil {
		RespondWithMappedError(c, err, "failed to change ban state",
			ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"},
			ErrorCase{Err: usecase.ErrServiceUnavailable, Status: http.StatusServiceUnavailable, Message: "ban state change temporarily unavailable"},
		)
		return
	}

	if banned {
		c.JSON(http.StatusOK, MessageResponse{Message: "user banned"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "user unbanned"})
}
