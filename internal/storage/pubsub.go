package storage

import (
	"civictrack/backend/internal/models"
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

// ErrNoRedis is returned by the relay methods when Redis is not configured.
var ErrNoRedis = errors.New("redis relay not configured")

// PublishEvent serialises ev and publishes it on a Redis channel.
func (s *Service) PublishEvent(ctx context.Context, channel string, ev models.Event) error {
	if s.Redis == nil {
		return ErrNoRedis
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, channel, payload).Err()
}

// SubscribeEvents decodes events published on channel. The returned channel
// closes when ctx is cancelled or the close func is called.
func (s *Service) SubscribeEvents(ctx context.Context, channel string) (<-chan models.Event, func() error) {
	out := make(chan models.Event)
	if s.Redis == nil {
		close(out)
		return out, func() error { return nil }
	}

	pubsub := s.Redis.Subscribe(ctx, channel)
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev models.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.logger.Warn("dropping undecodable relay message", zap.String("channel", channel), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, pubsub.Close
}
