package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalqueue/pkg/retry"
)

// Notifier sends the patient-facing message for an event
type Notifier interface {
	Notify(ctx context.Context, event *entities.QueueEvent) error
}

// EventDispatcher is the post-commit outbox. Services hand it events after
// the store write; worker goroutines publish them to the event bus and then
// notify the patient. Publish never blocks: when the buffer is full the event
// is dropped and counted.
type EventDispatcher struct {
	bus      providers.EventBus
	notifier Notifier
	queue    chan *entities.QueueEvent
	workers  int
	retryCfg retry.Config
	metrics  *observability.Metrics
	logger   zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewEventDispatcher creates a dispatcher. notifier may be nil.
func NewEventDispatcher(
	bus providers.EventBus,
	notifier Notifier,
	bufferSize, workers int,
	metrics *observability.Metrics,
) *EventDispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if workers <= 0 {
		workers = 1
	}
	d := &EventDispatcher{
		bus:      bus,
		notifier: notifier,
		queue:    make(chan *entities.QueueEvent, bufferSize),
		workers:  workers,
		metrics:  metrics,
		logger:   observability.Component("event_dispatcher"),
	}
	d.retryCfg = retry.PublishConfig()
	d.retryCfg.OnRetry = func(attempt int, err error, next time.Duration) {
		d.logger.Debug().Err(err).Int("attempt", attempt).Dur("next_delay", next).Msg("event publish failed, retrying")
	}
	return d
}

// Start launches the workers. They run until Close drains the buffer.
func (d *EventDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for event := range d.queue {
				d.deliver(ctx, event)
			}
		}()
	}
}

// Publish enqueues event for delivery without blocking
func (d *EventDispatcher) Publish(event *entities.QueueEvent) {
	if event == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn().Str("event_type", string(event.EventType)).Msg("dispatcher closed, dropping event")
		return
	}
	select {
	case d.queue <- event:
	default:
		d.metrics.RecordEventDropped(context.Background(), string(event.EventType))
		d.logger.Warn().
			Str("event_type", string(event.EventType)).
			Str("queue_number", event.QueueNumber).
			Msg("event buffer full, dropping event")
	}
}

// Close stops accepting events and waits for buffered ones to be delivered
func (d *EventDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if started {
		d.wg.Wait()
	}
}

func (d *EventDispatcher) deliver(ctx context.Context, event *entities.QueueEvent) {
	logger := d.logger.With().
		Str("event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Str("queue_number", event.QueueNumber).
		Logger()

	if d.bus != nil {
		for _, channel := range providers.ChannelsFor(event) {
			channel := channel
			err := retry.DoNamed(ctx, d.retryCfg, "publish "+channel, func() error {
				return d.bus.Publish(ctx, channel, event)
			})
			if err != nil {
				logger.Warn().Err(err).Str("channel", channel).Msg("event publish failed")
			}
		}
	}

	if d.notifier != nil {
		if err := d.notifier.Notify(ctx, event); err != nil {
			logger.Warn().Err(err).Msg("notification failed")
		}
	}
}
