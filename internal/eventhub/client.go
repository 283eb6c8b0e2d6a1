package eventhub

import "civictrack/backend/internal/models"

// Client is the interface for any realtime connection (currently WebSocket).
// It abstracts the underlying transport so the hub can manage every client
// type uniformly.
type Client interface {
	// GetClientID returns a per-connection identifier, unique within the hub.
	GetClientID() string
	// GetUserID returns the authenticated user behind the connection, or "".
	GetUserID() string
	// GetSendChannel returns the channel the hub pushes events into. The hub
	// never blocks on it: a full channel gets the client dropped.
	GetSendChannel() chan<- models.Event
	// Run starts the client's read and write pumps.
	Run()
	// Close stops the client. It must be safe to call more than once and
	// must not close the send channel.
	Close()
}
