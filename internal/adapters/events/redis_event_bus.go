package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	redisclient "github.com/zatekoja/hospitalqueue/internal/infrastructure/clients/redis"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
)

// subscriberBuffer is the per-subscriber backlog before events are dropped
const subscriberBuffer = 100

var errBusClosed = errors.New("event bus closed")

// RedisEventBus implements EventBus with Redis Pub/Sub. All channels share
// one connection; a channel is subscribed in Redis while at least one local
// subscriber listens to it.
type RedisEventBus struct {
	client      *redisclient.Client
	pubsub      *redis.PubSub
	subscribers map[string]map[chan *entities.QueueEvent]struct{}
	closed      bool
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	logger      zerolog.Logger
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:      client,
		subscribers: make(map[string]map[chan *entities.QueueEvent]struct{}),
		ctx:         ctx,
		cancel:      cancel,
		logger:      observability.Component("redis_event_bus"),
	}
}

// Publish sends an event to every process subscribed to channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.QueueEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	receivers, err := b.client.Client().Publish(ctx, channel, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", channel, err)
	}

	b.logger.Debug().Str("channel", channel).Str("event_id", event.ID).
		Str("event_type", string(event.EventType)).Int64("receivers", receivers).Msg("published event")
	return nil
}

// Subscribe returns a channel of events published on channel. It is closed
// when ctx is done, on Unsubscribe or on Close.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.QueueEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errBusClosed
	}
	if b.pubsub == nil {
		b.pubsub = b.client.Client().Subscribe(b.ctx)
		go b.receive(b.pubsub.Channel())
	}
	if len(b.subscribers[channel]) == 0 {
		if err := b.pubsub.Subscribe(ctx, channel); err != nil {
			return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		b.subscribers[channel] = make(map[chan *entities.QueueEvent]struct{})
	}

	eventChan := make(chan *entities.QueueEvent, subscriberBuffer)
	b.subscribers[channel][eventChan] = struct{}{}
	b.logger.Debug().Str("channel", channel).Int("subscribers", len(b.subscribers[channel])).Msg("subscribed")

	go func() {
		select {
		case <-ctx.Done():
			b.removeSubscriber(channel, eventChan)
		case <-b.ctx.Done():
		}
	}()

	return eventChan, nil
}

// receive decodes messages and hands them to the local subscribers of
// their channel. Slow subscribers miss events rather than stall the others.
func (b *RedisEventBus) receive(messages <-chan *redis.Message) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event entities.QueueEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping undecodable event")
				continue
			}

			b.mu.RLock()
			for subscriber := range b.subscribers[msg.Channel] {
				select {
				case subscriber <- &event:
				default:
					b.logger.Warn().Str("channel", msg.Channel).Str("event_id", event.ID).
						Msg("subscriber channel full, skipping event")
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, eventChan chan *entities.QueueEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers := b.subscribers[channel]
	if _, ok := subscribers[eventChan]; !ok {
		return
	}
	delete(subscribers, eventChan)
	close(eventChan)

	if len(subscribers) == 0 {
		b.dropChannel(channel)
	}
}

// dropChannel unsubscribes channel in Redis. Callers hold mu.
func (b *RedisEventBus) dropChannel(channel string) {
	delete(b.subscribers, channel)
	if b.pubsub == nil || b.closed {
		return
	}
	if err := b.pubsub.Unsubscribe(context.Background(), channel); err != nil {
		b.logger.Warn().Err(err).Str("channel", channel).Msg("failed to unsubscribe")
	}
}

// Unsubscribe closes every local subscriber of channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subscriber := range b.subscribers[channel] {
		close(subscriber)
	}
	b.dropChannel(channel)
	return nil
}

// Close closes all subscribers and the shared connection
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for channel, subscribers := range b.subscribers {
		for subscriber := range subscribers {
			close(subscriber)
		}
		delete(b.subscribers, channel)
	}

	if b.pubsub != nil {
		if err := b.pubsub.Close(); err != nil {
			return fmt.Errorf("failed to close subscription: %w", err)
		}
	}
	return nil
}
