package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/pelletradar/internal/notify"
)

type StreamHandler struct {
	hub *notify.Hub
}

func NewStreamHandler(hub *notify.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// PriceDrops upgrades to a websocket that receives every detected drop.
func (h *StreamHandler) PriceDrops(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request); err != nil {
		// The upgrader has already written the error response.
		_ = c.Error(err)
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
