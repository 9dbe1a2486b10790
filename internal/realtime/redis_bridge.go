package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/osa-scan/dresscode-api/internal/models"
)

// envelope is the wire form shared between API instances over Redis pub/sub.
type envelope struct {
	Origin  string                `json:"origin"`
	Channel models.Channel        `json:"channel"`
	Event   models.LifecycleEvent `json:"event"`
}

// RedisBridge mirrors hub broadcasts across instances through one Redis
// pub/sub channel. Delivery inherits Redis pub/sub semantics: at-most-once,
// nothing retained for late joiners.
type RedisBridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
	origin  string
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRedisBridge constructs a bridge around the hub. Call Start to begin
// relaying remote events.
func NewRedisBridge(client *redis.Client, hub *Hub, channel string, logger *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = "dresscode:events"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{
		client:  client,
		hub:     hub,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Publish sends the event to Redis for other instances. The caller has
// already broadcast locally; remote copies of our own envelopes are skipped
// on receipt via the origin tag.
func (b *RedisBridge) Publish(ctx context.Context, channel models.Channel, event models.LifecycleEvent) error {
	if b.client == nil {
		return nil
	}
	payload, err := json.Marshal(envelope{Origin: b.origin, Channel: channel, Event: event})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Start subscribes to the Redis channel and relays remote events into the
// local hub until Stop is called.
func (b *RedisBridge) Start(ctx context.Context) {
	if b.client == nil {
		return
	}
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})
	sub := b.client.Subscribe(ctx, b.channel)

	go func() {
		defer close(b.done)
		defer sub.Close() //nolint:errcheck
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.logger.Warn("malformed event envelope", zap.Error(err))
					continue
				}
				if env.Origin == b.origin {
					continue
				}
				b.hub.Broadcast(env.Channel, env.Event)
			}
		}
	}()
}

// Stop cancels the relay and waits for it to exit.
func (b *RedisBridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.done != nil {
		<-b.done
	}
}
