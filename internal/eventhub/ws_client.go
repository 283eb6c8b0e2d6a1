package eventhub

import (
	"civictrack/backend/internal/config"
	"civictrack/backend/internal/models"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client commands.
const (
	ActionJoinReport  = "joinReport"
	ActionLeaveReport = "leaveReport"
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Hub    *Manager
	Send   chan models.Event

	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// NewWebSocketClient wraps an upgraded connection. userID may be empty for
// anonymous viewers.
func NewWebSocketClient(hub *Manager, conn *websocket.Conn, userID string, logger *zap.Logger) *WebSocketClient {
	return &WebSocketClient{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.Event, config.ClientSendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *WebSocketClient) GetClientID() string                 { return c.ID }
func (c *WebSocketClient) GetUserID() string                   { return c.UserID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close signals writePump to send a close frame and stop.
func (c *WebSocketClient) Close() {
	c.once.Do(func() { close(c.done) })
}

// readPump applies joinReport/leaveReport commands until the connection drops.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("error reading realtime message", zap.String("client_id", c.ID), zap.Error(err))
			}
			break
		}

		var cmd models.ClientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.logger.Debug("ignoring undecodable client command", zap.String("client_id", c.ID), zap.Error(err))
			continue
		}
		c.apply(cmd)
	}
}

func (c *WebSocketClient) apply(cmd models.ClientCommand) {
	if cmd.ReportID == "" {
		return
	}
	switch cmd.Action {
	case ActionJoinReport:
		c.Hub.Join(c, cmd.ReportID)
	case ActionLeaveReport:
		c.Hub.Leave(c, cmd.ReportID)
	}
}

// writePump writes queued events and keeps the connection alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
