package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisRelay fans events out through Redis pub/sub so that every instance
// delivers them to its own clients. Publish does not deliver locally; the
// local hub receives the event back through its own subscription.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  zerolog.Logger
}

func NewRedisRelay(client *redis.Client, prefix string, hub *Hub, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: prefix + "ws_events",
		hub:     hub,
		logger:  logger.With().Str("component", "ws_relay").Logger(),
	}
}

func (r *RedisRelay) Channel() string {
	return r.channel
}

func (r *RedisRelay) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Run relays received events into the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info().Str("channel", r.channel).Msg("websocket relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch(msg.Payload)
		}
	}
}

func (r *RedisRelay) dispatch(payload string) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		r.logger.Warn().Err(err).Msg("dropping malformed relay event")
		return
	}
	_ = r.hub.Publish(context.Background(), event)
}
