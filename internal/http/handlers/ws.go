package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WSHandler mounts the realtime gateway. Authentication happens inside the
// gateway because browsers cannot set headers on the upgrade request.
type WSHandler struct {
	Gateway http.Handler
}

func (h *WSHandler) Handle(c *gin.Context) {
	h.Gateway.ServeHTTP(c.Writer, c.Request)
}
