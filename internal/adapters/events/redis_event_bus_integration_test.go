//go:build integration

package events

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/clients/redis"
	"github.com/zatekoja/hospitalqueue/pkg/config"
)

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	port, err := strconv.Atoi(os.Getenv("TEST_REDIS_PORT"))
	if err != nil {
		port = 6379
	}
	client, err := redis.NewClient(&config.RedisConfig{
		Host:     os.Getenv("TEST_REDIS_HOST"),
		Port:     port,
		Password: os.Getenv("TEST_REDIS_PASSWORD"),
	})
	require.NoError(t, err, "Failed to create redis client")
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func waitForEvent(t *testing.T, ch <-chan *entities.QueueEvent) *entities.QueueEvent {
	t.Helper()
	select {
	case event := <-ch:
		require.NotNil(t, event)
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestRedisEventBus_FanoutIntegration(t *testing.T) {
	bus := NewRedisEventBus(newTestRedisClient(t))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.GetDepartmentChannel("Cardiology")
	display, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	kiosk, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	entry := &entities.QueueEntry{ID: "e-redis-1", QueueNumber: "CARD-001", Department: "Cardiology", PatientID: "p-1"}
	event := entities.NewQueueEvent(entities.QueueEventPatientCalled, entry, time.Now(), map[string]interface{}{"server_id": "doctor-card"})
	require.NoError(t, bus.Publish(context.Background(), channel, event))

	for _, sub := range []<-chan *entities.QueueEvent{display, kiosk} {
		got := waitForEvent(t, sub)
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, entities.QueueEventPatientCalled, got.EventType)
		assert.Equal(t, "CARD-001", got.QueueNumber)
	}
}

func TestRedisEventBus_PatientChannelIsolationIntegration(t *testing.T) {
	bus := NewRedisEventBus(newTestRedisClient(t))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, err := bus.Subscribe(ctx, providers.GetPatientChannel("p-1"))
	require.NoError(t, err)
	theirs, err := bus.Subscribe(ctx, providers.GetPatientChannel("p-2"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	entry := &entities.QueueEntry{ID: "e-redis-2", QueueNumber: "GENE-004", Department: "General Medicine", PatientID: "p-1"}
	event := entities.NewQueueEvent(entities.QueueEventTicketCreated, entry, time.Now(), nil)
	for _, channel := range providers.ChannelsFor(event) {
		require.NoError(t, bus.Publish(context.Background(), channel, event))
	}

	assert.Equal(t, event.ID, waitForEvent(t, mine).ID)
	select {
	case got := <-theirs:
		t.Fatalf("event leaked to another patient: %v", got)
	case <-time.After(200 * time.Millisecond):
	}
}
