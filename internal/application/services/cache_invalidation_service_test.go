package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospitalqueue/internal/adapters/cache"
	"github.com/zatekoja/hospitalqueue/internal/adapters/events"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
)

func boardKeys(department string) []string {
	return []string{"board:" + department}
}

func cached(c providers.CacheProvider, key string) bool {
	_, err := c.Get(context.Background(), key)
	return !errors.Is(err, providers.ErrCacheMiss)
}

func TestCacheInvalidationService_EvictsDepartmentViews(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	store := cache.NewMemoryAdapter()
	bus := events.NewLocalEventBus()
	defer bus.Close()

	estimator := NewWaitTimeEstimator(env.entries, store, env.clock, time.UTC, DefaultServiceMinutes, time.Minute)
	assert.Equal(t, DefaultServiceMinutes, estimator.HistoricalAverage(ctx, "Cardiology"))
	avgKey := estimator.cacheKey("Cardiology", "", clock.StartOfDay(env.clock.Now(), time.UTC))
	require.True(t, cached(store, avgKey))

	require.NoError(t, store.Set(ctx, "board:Cardiology", []byte(`{}`), 60))
	require.NoError(t, store.Set(ctx, "board:Pediatrics", []byte(`{}`), 60))

	svc := NewCacheInvalidationService(store, bus, estimator, boardKeys)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	entry := &entities.QueueEntry{ID: "e-1", QueueNumber: "CARD-001", Department: "Cardiology", PatientID: "p-1"}

	// a call changes the board but not the day's averages
	require.NoError(t, bus.Publish(ctx, providers.EventChannelQueueUpdates,
		entities.NewQueueEvent(entities.QueueEventPatientCalled, entry, morning, nil)))
	assert.Eventually(t, func() bool { return !cached(store, "board:Cardiology") }, time.Second, 5*time.Millisecond)
	assert.True(t, cached(store, avgKey))

	require.NoError(t, bus.Publish(ctx, providers.EventChannelQueueUpdates,
		entities.NewQueueEvent(entities.QueueEventServiceCompleted, entry, morning, nil)))
	assert.Eventually(t, func() bool { return !cached(store, avgKey) }, time.Second, 5*time.Millisecond)

	assert.True(t, cached(store, "board:Pediatrics"))
}

func TestCacheInvalidationService_StopEndsListener(t *testing.T) {
	bus := events.NewLocalEventBus()
	defer bus.Close()

	svc := NewCacheInvalidationService(cache.NewMemoryAdapter(), bus, nil, boardKeys)
	require.NoError(t, svc.Start())

	stopped := make(chan struct{})
	go func() {
		svc.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
