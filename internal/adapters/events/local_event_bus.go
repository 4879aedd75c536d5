package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
)

// LocalEventBus is an in-process EventBus used when Redis is disabled and in tests
type LocalEventBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *entities.QueueEvent]struct{}
	closed      bool
	logger      zerolog.Logger
}

// NewLocalEventBus creates an in-process event bus
func NewLocalEventBus() *LocalEventBus {
	return &LocalEventBus{
		subscribers: make(map[string]map[chan *entities.QueueEvent]struct{}),
		logger:      observability.Component("local_event_bus"),
	}
}

var _ providers.EventBus = (*LocalEventBus)(nil)

// Publish delivers event to current subscribers of channel without blocking
func (b *LocalEventBus) Publish(ctx context.Context, channel string, event *entities.QueueEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subscriber := range b.subscribers[channel] {
		select {
		case subscriber <- event:
		default:
			b.logger.Warn().Str("channel", channel).Str("event_id", event.ID).
				Msg("subscriber channel full, skipping event")
		}
	}
	return nil
}

// Subscribe registers a subscriber that lives until ctx is done
func (b *LocalEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.QueueEvent, error) {
	eventChan := make(chan *entities.QueueEvent, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(eventChan)
		return eventChan, nil
	}
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[chan *entities.QueueEvent]struct{})
	}
	b.subscribers[channel][eventChan] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(channel, eventChan)
	}()
	return eventChan, nil
}

func (b *LocalEventBus) remove(channel string, eventChan chan *entities.QueueEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, ok := b.subscribers[channel]
	if !ok {
		return
	}
	if _, ok := subscribers[eventChan]; !ok {
		return
	}
	delete(subscribers, eventChan)
	close(eventChan)
	if len(subscribers) == 0 {
		delete(b.subscribers, channel)
	}
}

// Unsubscribe drops every subscriber of channel
func (b *LocalEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subscriber := range b.subscribers[channel] {
		close(subscriber)
	}
	delete(b.subscribers, channel)
	return nil
}

// Close drops every subscription
func (b *LocalEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for channel, subscribers := range b.subscribers {
		for subscriber := range subscribers {
			close(subscriber)
		}
		delete(b.subscribers, channel)
	}
	b.closed = true
	return nil
}
