package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

func TestDispatchService_PriorityOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// joined in the opposite order of their priority
	env.checkIn(t, env.addPatient(t, 1), "Cardiology", entities.PriorityLow)
	env.clock.Advance(time.Minute)
	env.checkIn(t, env.addPatient(t, 2), "Cardiology", entities.PriorityMedium)
	env.clock.Advance(time.Minute)
	env.checkIn(t, env.addPatient(t, 3), "Cardiology", entities.PriorityHigh)
	env.clock.Advance(time.Minute)
	env.checkIn(t, env.addPatient(t, 4), "Cardiology", entities.PriorityUrgent)

	d := doctor("d-1", "Cardiology")
	var got []entities.Priority
	for i := 0; i < 4; i++ {
		res, err := env.dispatch.CallNext(ctx, d, "")
		require.NoError(t, err)
		require.False(t, res.Empty)
		got = append(got, res.Entry.Priority)
		_, err = env.queue.Complete(ctx, d, "")
		require.NoError(t, err)
	}

	assert.Equal(t, []entities.Priority{
		entities.PriorityUrgent,
		entities.PriorityHigh,
		entities.PriorityMedium,
		entities.PriorityLow,
	}, got)
}

func TestDispatchService_FIFOWithinPriority(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.checkIn(t, env.addPatient(t, 1), "Cardiology", entities.PriorityHigh)
	env.clock.Advance(time.Minute)
	env.checkIn(t, env.addPatient(t, 2), "Cardiology", entities.PriorityHigh)

	res, err := env.dispatch.CallNext(ctx, doctor("d-1", "Cardiology"), "Cardiology")
	require.NoError(t, err)
	assert.Equal(t, first.QueueNumber, res.Entry.QueueNumber)
}

func TestDispatchService_ServerBusy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.checkIn(t, env.addPatient(t, 1), "Cardiology", entities.PriorityMedium)
	env.checkIn(t, env.addPatient(t, 2), "Cardiology", entities.PriorityMedium)
	d := doctor("d-1", "Cardiology")

	called, err := env.dispatch.CallNext(ctx, d, "")
	require.NoError(t, err)
	before := len(env.events.Types())

	_, err = env.dispatch.CallNext(ctx, d, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeServerBusy))
	appErr, _ := apperrors.As(err)
	current, ok := appErr.Details["current_entry"].(*entities.QueueEntry)
	require.True(t, ok)
	assert.Equal(t, called.Entry.ID, current.ID)

	waiting, err := env.entries.Count(ctx, repositories.QueueEntryFilter{
		Department: "Cardiology",
		Statuses:   []entities.QueueStatus{entities.QueueStatusWaiting},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, waiting, "the waiting entry is untouched")
	assert.Len(t, env.events.Types(), before)
}

func TestDispatchService_EmptyQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// pending entries are not dispatchable
	_, err := env.queue.CheckIn(ctx, CheckInRequest{
		PatientID:           env.addPatient(t, 1).ID,
		Department:          "Cardiology",
		RequiresLabApproval: true,
	})
	require.NoError(t, err)

	res, err := env.dispatch.CallNext(ctx, doctor("d-1", "Cardiology"), "")
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, "Cardiology", res.Department)
	assert.Nil(t, res.Entry)
}

func TestDispatchService_UnknownDepartment(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dispatch.CallNext(context.Background(), doctor("d-1", "Cardiology"), "Astrology")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestDispatchService_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	patient := env.addPatient(t, 42)
	d := doctor("d-1", "Cardiology")

	res, err := env.queue.CheckIn(ctx, CheckInRequest{CardNumber: patient.CardNumber, Department: "Cardiology"})
	require.NoError(t, err)
	assert.Equal(t, "CARD-001", res.QueueNumber)
	assert.Equal(t, entities.QueueStatusWaiting, res.Status)

	env.clock.Advance(5 * time.Minute)
	called, err := env.dispatch.CallNext(ctx, d, "Cardiology")
	require.NoError(t, err)
	assert.Equal(t, "CARD-001", called.Entry.QueueNumber)
	assert.Equal(t, entities.QueueStatusInProgress, called.Entry.Status)
	assert.True(t, called.Entry.AssignedTo(d.ID))
	require.NotNil(t, called.Entry.ServiceStartTime)

	env.clock.Advance(8 * time.Minute)
	done, err := env.queue.Complete(ctx, d, "")
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusComplete, done.Status)
	require.NotNil(t, done.ActualWaitTime)
	assert.GreaterOrEqual(t, *done.ActualWaitTime, 0)

	// the doctor is free again
	next, err := env.dispatch.CallNext(ctx, d, "Cardiology")
	require.NoError(t, err)
	assert.True(t, next.Empty)

	assert.Equal(t, []entities.QueueEventType{
		entities.QueueEventTicketCreated,
		entities.QueueEventPatientCalled,
		entities.QueueEventServiceCompleted,
	}, env.events.Types())
}

func TestDispatchService_ResolveDepartment(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit request wins", func(t *testing.T) {
		env := newTestEnv(t)
		got, err := env.dispatch.ResolveDepartment(ctx, doctor("d-1", "Cardiology"), "pediatrics")
		require.NoError(t, err)
		assert.Equal(t, "Pediatrics", got)
	})

	t.Run("server affiliation", func(t *testing.T) {
		env := newTestEnv(t)
		got, err := env.dispatch.ResolveDepartment(ctx, doctor("d-1", "Cardiology"), "")
		require.NoError(t, err)
		assert.Equal(t, "Cardiology", got)
	})

	t.Run("last assignment", func(t *testing.T) {
		env := newTestEnv(t)
		env.checkIn(t, env.addPatient(t, 1), "Pediatrics", entities.PriorityMedium)
		d := doctor("d-1", "")
		_, err := env.dispatch.CallNext(ctx, d, "Pediatrics")
		require.NoError(t, err)
		_, err = env.queue.Complete(ctx, d, "")
		require.NoError(t, err)
		env.checkIn(t, env.addPatient(t, 2), "Cardiology", entities.PriorityMedium)
		env.checkIn(t, env.addPatient(t, 3), "Cardiology", entities.PriorityMedium)

		got, err := env.dispatch.ResolveDepartment(ctx, d, "")
		require.NoError(t, err)
		assert.Equal(t, "Pediatrics", got)
	})

	t.Run("busiest department", func(t *testing.T) {
		env := newTestEnv(t)
		env.checkIn(t, env.addPatient(t, 1), "Pediatrics", entities.PriorityMedium)
		env.checkIn(t, env.addPatient(t, 2), "Cardiology", entities.PriorityMedium)
		env.checkIn(t, env.addPatient(t, 3), "Cardiology", entities.PriorityMedium)

		got, err := env.dispatch.ResolveDepartment(ctx, doctor("d-new", ""), "")
		require.NoError(t, err)
		assert.Equal(t, "Cardiology", got)
	})

	t.Run("default", func(t *testing.T) {
		env := newTestEnv(t)
		got, err := env.dispatch.ResolveDepartment(ctx, doctor("d-new", ""), "")
		require.NoError(t, err)
		assert.Equal(t, "General Medicine", got)
	})
}

func TestDispatchService_ConcurrentCallsNeverShareAnEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const patients, servers = 6, 10
	for i := 1; i <= patients; i++ {
		env.checkIn(t, env.addPatient(t, i), "Cardiology", entities.PriorityMedium)
		env.clock.Advance(time.Second)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		called = make(map[string]string)
		empty  int
	)
	for i := 0; i < servers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := doctor(string(rune('a'+i)), "Cardiology")
			res, err := env.dispatch.CallNext(ctx, d, "")
			if err != nil {
				// contention may exhaust the retries; it must never double-assign
				assert.True(t, apperrors.HasCode(err, apperrors.CodeDispatchContended), "unexpected error: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Empty {
				empty++
				return
			}
			_, dup := called[res.Entry.ID]
			assert.False(t, dup, "entry %s handed to two servers", res.Entry.QueueNumber)
			called[res.Entry.ID] = d.ID
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, len(called), patients)
	for id, serverID := range called {
		stored, err := env.entries.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entities.QueueStatusInProgress, stored.Status)
		assert.True(t, stored.AssignedTo(serverID))
	}
}
