package eventhub

import (
	"civictrack/backend/internal/config"
	"context"
	"time"

	"go.uber.org/zap"
)

// StartRelay subscribes to the relay channel and switches publishing to go
// through it, so every instance (this one included) delivers each event to
// its own clients. It resubscribes until ctx is cancelled. While the
// subscription is down, events are delivered locally only.
func (m *Manager) StartRelay(ctx context.Context, relay Relay) {
	events, closeFn := relay.SubscribeEvents(ctx, config.EventRelayChannel)
	m.setRelay(relay)

	go func() {
		defer m.setRelay(nil)

		for {
			for ev := range events {
				m.Deliver(ev)
			}
			_ = closeFn()
			m.setRelay(nil)

			select {
			case <-ctx.Done():
				return
			case <-time.After(config.RelayRetryInterval):
			}
			m.logger.Warn("relay subscription ended, resubscribing", zap.String("channel", config.EventRelayChannel))
			events, closeFn = relay.SubscribeEvents(ctx, config.EventRelayChannel)
			m.setRelay(relay)
		}
	}()
}

func (m *Manager) setRelay(relay Relay) {
	m.relayMu.Lock()
	m.relay = relay
	m.relayMu.Unlock()
}
