package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BivasNandan/Law-Aid-sub001/internal/reminder"
)

// ReminderRunner runs one reminder pass on demand.
type ReminderRunner interface {
	RunOnce(ctx context.Context) (reminder.Result, error)
}

type ReminderHandler struct {
	Runner ReminderRunner
}

func (h *ReminderHandler) Run(c *gin.Context) {
	res, err := h.Runner.RunOnce(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
