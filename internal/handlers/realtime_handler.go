package handlers

import (
	"github.com/gin-gonic/gin"

	"rugbuster/internal/realtime"
)

// RealtimeHandler exposes the nominations change feed over websocket
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler creates a new RealtimeHandler
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Subscribe upgrades the request and streams change events until the
// client disconnects
// GET /ws
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	// HandleConnection writes its own error response on upgrade failure.
	_ = h.hub.HandleConnection(c.Writer, c.Request)
}
