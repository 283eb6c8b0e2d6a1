package handler

import (
	"net/http"

	"civictrack/backend/internal/eventhub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Public map and dashboard pages are served from other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades to a realtime connection. A token is optional:
// anonymous viewers receive the same public events. An optional reportId
// query parameter joins that report's room right away.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	var userID string
	if who, ok := h.identify(c); ok {
		userID = who.UserID
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.Logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := eventhub.NewWebSocketClient(h.Hub, conn, userID, h.Logger)
	h.Hub.Register(client)
	if reportID := c.Query("reportId"); reportID != "" {
		h.Hub.Join(client, reportID)
	}
	client.Run()
}
