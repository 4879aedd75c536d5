package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zatekoja/hospitalqueue/internal/adapters/cache"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
)

func TestCacheWarmingService_WarmsEveryDepartment(t *testing.T) {
	env := newTestEnv(t)
	store := cache.NewMemoryAdapter()
	estimator := NewWaitTimeEstimator(env.entries, store, env.clock, time.UTC, DefaultServiceMinutes, time.Minute)
	departments := entities.NewDepartmentSet([]string{"Cardiology", "Pediatrics"})

	NewCacheWarmingService(estimator, departments).WarmCache(context.Background())

	day := clock.StartOfDay(env.clock.Now(), time.UTC)
	for _, department := range departments.Names() {
		for _, st := range estimateServiceTypes {
			value, err := store.Get(context.Background(), estimator.cacheKey(department, st, day))
			assert.NoError(t, err, "%s/%s", department, st)
			assert.Equal(t, "15", string(value))
		}
	}
}

func TestCacheWarmingService_StopsWithContext(t *testing.T) {
	env := newTestEnv(t)
	warmer := NewCacheWarmingService(env.estimator, entities.NewDepartmentSet(testDepartments))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		warmer.StartPeriodicWarming(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("warming loop did not stop")
	}
}
