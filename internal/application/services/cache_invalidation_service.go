package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
)

// CacheInvalidationService listens to the hospital-wide queue channel and
// evicts cached views of the affected department, so display boards refresh
// on the next poll instead of when their TTL lapses. With a shared bus it
// also evicts entries cached by other API instances.
type CacheInvalidationService struct {
	cache     providers.CacheProvider
	eventBus  providers.EventBus
	estimator *WaitTimeEstimator
	keysFor   func(department string) []string
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewCacheInvalidationService creates a new cache invalidation service.
// keysFor lists the cache keys derived from a department; estimator may be nil.
func NewCacheInvalidationService(
	cache providers.CacheProvider,
	eventBus providers.EventBus,
	estimator *WaitTimeEstimator,
	keysFor func(department string) []string,
) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:     cache,
		eventBus:  eventBus,
		estimator: estimator,
		keysFor:   keysFor,
		logger:    observability.Component("cache_invalidation"),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start begins listening for events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelQueueUpdates)
	if err != nil {
		close(s.done)
		return fmt.Errorf("failed to subscribe to queue updates: %w", err)
	}

	go s.processEvents(eventChan)
	s.logger.Info().Msg("Cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the listener to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	<-s.done
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.QueueEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event != nil {
				s.handleEvent(event)
			}
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.QueueEvent) {
	if event.Department == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// completions change the day's averages
	if event.EventType == entities.QueueEventServiceCompleted && s.estimator != nil {
		s.estimator.Invalidate(ctx, event.Department)
	}

	if s.keysFor == nil {
		return
	}
	for _, key := range s.keysFor(event.Department) {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("department", event.Department).Msg("Failed to invalidate cached view")
		}
	}
	s.logger.Debug().Str("event_id", event.ID).Str("department", event.Department).
		Str("event_type", string(event.EventType)).Msg("Invalidated department caches")
}
