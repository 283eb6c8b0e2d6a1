// Package eventhub is the realtime event bus: one room per report plus a
// global broadcast to every connected client. Delivery is best effort; a
// client that is not connected when an event is published never sees it.
package eventhub

import (
	"civictrack/backend/internal/config"
	"civictrack/backend/internal/models"
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Relay fans events out across API instances (Redis pub/sub in production).
type Relay interface {
	PublishEvent(ctx context.Context, channel string, ev models.Event) error
	SubscribeEvents(ctx context.Context, channel string) (<-chan models.Event, func() error)
}

// Manager holds the client registry and room membership.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]Client
	rooms   map[string]map[string]Client

	relayMu sync.RWMutex
	relay   Relay

	logger *zap.Logger
}

// NewManager creates an empty hub.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		clients: make(map[string]Client),
		rooms:   make(map[string]map[string]Client),
		logger:  logger,
	}
}

// Register adds c to the global audience.
func (m *Manager) Register(c Client) {
	m.mu.Lock()
	m.clients[c.GetClientID()] = c
	m.mu.Unlock()
}

// Unregister removes c from every room and closes it. Unknown clients are ignored.
func (m *Manager) Unregister(c Client) {
	id := c.GetClientID()

	m.mu.Lock()
	_, known := m.clients[id]
	delete(m.clients, id)
	for room, members := range m.rooms {
		if _, ok := members[id]; ok {
			delete(members, id)
			if len(members) == 0 {
				delete(m.rooms, room)
			}
		}
	}
	m.mu.Unlock()

	if known {
		c.Close()
	}
}

// Join subscribes c to a report's room. Joining twice is a no-op.
func (m *Manager) Join(c Client, reportID string) {
	room := config.ReportRoom(reportID)
	id := c.GetClientID()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		m.clients[id] = c
	}
	members, ok := m.rooms[room]
	if !ok {
		members = make(map[string]Client)
		m.rooms[room] = members
	}
	members[id] = c
}

// Leave unsubscribes c from a report's room. Leaving a room c is not in is a no-op.
func (m *Manager) Leave(c Client, reportID string) {
	room := config.ReportRoom(reportID)

	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.rooms[room]
	if !ok {
		return
	}
	delete(members, c.GetClientID())
	if len(members) == 0 {
		delete(m.rooms, room)
	}
}

// RoomSize returns the number of clients subscribed to a report.
func (m *Manager) RoomSize(reportID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[config.ReportRoom(reportID)])
}

// ClientCount returns the number of registered clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// PublishToReport delivers an event to the clients in a report's room.
func (m *Manager) PublishToReport(ctx context.Context, reportID, name string, payload interface{}) {
	m.publish(ctx, config.ReportRoom(reportID), name, payload)
}

// PublishGlobal delivers an event to every connected client.
func (m *Manager) PublishGlobal(ctx context.Context, name string, payload interface{}) {
	m.publish(ctx, "", name, payload)
}

func (m *Manager) publish(ctx context.Context, room, name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("failed to encode event payload", zap.String("event", name), zap.Error(err))
		return
	}
	ev := models.Event{Name: name, Room: room, Data: data}

	if relay := m.currentRelay(); relay != nil {
		err = relay.PublishEvent(ctx, config.EventRelayChannel, ev)
		if err == nil {
			return
		}
		m.logger.Warn("relay publish failed, delivering locally", zap.String("event", name), zap.Error(err))
	}
	m.Deliver(ev)
}

// Deliver pushes ev to the local clients it is addressed to.
func (m *Manager) Deliver(ev models.Event) {
	m.mu.RLock()
	var targets []Client
	if ev.Room == "" {
		targets = make([]Client, 0, len(m.clients))
		for _, c := range m.clients {
			targets = append(targets, c)
		}
	} else {
		members := m.rooms[ev.Room]
		targets = make([]Client, 0, len(members))
		for _, c := range members {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()

	var slow []Client
	for _, c := range targets {
		select {
		case c.GetSendChannel() <- ev:
		default:
			slow = append(slow, c)
		}
	}

	for _, c := range slow {
		m.logger.Warn("dropping slow realtime client",
			zap.String("client_id", c.GetClientID()),
			zap.String("event", ev.Name),
		)
		m.Unregister(c)
	}
}

func (m *Manager) currentRelay() Relay {
	m.relayMu.RLock()
	defer m.relayMu.RUnlock()
	return m.relay
}
