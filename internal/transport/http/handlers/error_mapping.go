package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCase maps a usecase sentinel to the status and message a client sees.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves err against the given cases in order.
// Anything unmatched is a bug or an infrastructure failure, so the fallback
// is always 500 with a message that names the operation without leaking the
// underlying error.
func RespondWithMappedError(c *gin.Context, err error, fallbackMessage string, cases ...ErrorCase) {
	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, fallbackMessage))
}
