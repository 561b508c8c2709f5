package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/observability"
)

// RedisRelay is a Dispatcher that also forwards every event over a redis
// channel and re-dispatches events published by other processes locally.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	local   Dispatcher
	logger  *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisRelay wraps local with cross-process delivery on channel.
func NewRedisRelay(client *redis.Client, channel string, local Dispatcher, logger *zap.Logger) *RedisRelay {
	if local == nil {
		local = NewInMemoryDispatcher()
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		local:   local,
		logger:  observability.OrNop(logger).Named("relay"),
	}
}

// Publish dispatches locally first, then forwards to other processes.
// Forwarding failures are logged; local delivery has already happened.
func (r *RedisRelay) Publish(ctx context.Context, event Event) error {
	localErr := r.local.Publish(ctx, event)

	if event.Origin == "" {
		event.Origin = r.origin
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Warn("session event not relayed", zap.String("type", string(event.Type)), zap.Error(err))
	}
	return localErr
}

// Subscribe registers a local handler.
func (r *RedisRelay) Subscribe(eventType EventType, handler EventHandler) func() {
	return r.local.Subscribe(eventType, handler)
}

// Start subscribes to the channel and begins re-dispatching remote events.
// It returns once the subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub != nil {
		return nil
	}

	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.pubsub = pubsub
	r.done = make(chan struct{})

	go r.loop(ctx, pubsub.Channel(), r.done)
	return nil
}

func (r *RedisRelay) loop(ctx context.Context, messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range messages {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			r.logger.Warn("dropping malformed session event", zap.Error(err))
			continue
		}
		if event.Origin == r.origin {
			continue
		}
		if err := r.local.Publish(ctx, event); err != nil {
			r.logger.Warn("remote session event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
		}
	}
}

// Close stops the subscription.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	pubsub, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
