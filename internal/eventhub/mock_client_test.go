package eventhub_test

import (
	"civictrack/backend/internal/models"
	"sync/atomic"
)

type MockClient struct {
	clientID    string
	userID      string
	RecvChannel chan models.Event
	closed      atomic.Int32
}

func newMockClient(clientID string) *MockClient {
	return &MockClient{
		clientID:    clientID,
		RecvChannel: make(chan models.Event, 10),
	}
}

func (c *MockClient) GetClientID() string {
	return c.clientID
}

func (c *MockClient) GetUserID() string {
	return c.userID
}

func (c *MockClient) GetSendChannel() chan<- models.Event {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Add(1)
}

func (c *MockClient) Closed() int {
	return int(c.closed.Load())
}
