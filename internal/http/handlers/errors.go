package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BivasNandan/Law-Aid-sub001/internal/chat"
)

// respondError maps service errors to a status and a client-safe message.
// Anything unrecognised is a 500 with a generic body; the detail goes to
// the request log through c.Error.
func respondError(c *gin.Context, err error) {
	var ce *chat.Error
	if errors.As(err, &ce) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, chat.ErrBadRequest):
			status = http.StatusBadRequest
		case errors.Is(err, chat.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, chat.ErrNotFound):
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"message": ce.Msg})
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
}
