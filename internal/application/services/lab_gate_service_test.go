package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

func (env *testEnv) pendingEntry(t *testing.T, n int) *entities.QueueEntry {
	t.Helper()
	res, err := env.queue.CheckIn(context.Background(), CheckInRequest{
		PatientID:           env.addPatient(t, n).ID,
		Department:          "Laboratory",
		ServiceType:         string(entities.ServiceTypeLabTest),
		RequiresLabApproval: true,
	})
	require.NoError(t, err)
	require.Equal(t, entities.QueueStatusPendingLabApproval, res.Status)
	return res.Entry
}

func TestLabGateService_ApproveKeepsJoinTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	entry := env.pendingEntry(t, 1)

	env.clock.Advance(20 * time.Minute)
	// a walk-in who joined after the pending entry
	later := env.checkIn(t, env.addPatient(t, 2), "Laboratory", entities.PriorityMedium)

	approved, err := env.labGate.Approve(ctx, labTech(t, "t-1"), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusWaiting, approved.Status)
	assert.True(t, entry.JoinedAt.Equal(approved.JoinedAt))
	assert.Equal(t, entities.QueueEventLabApproved, env.events.Last().EventType)
	assert.Equal(t, "t-1", env.events.Last().Data["technician_id"])

	// the approved entry keeps its place ahead of later arrivals
	res, err := env.dispatch.CallNext(ctx, doctor("d-1", "Laboratory"), "")
	require.NoError(t, err)
	assert.Equal(t, entry.QueueNumber, res.Entry.QueueNumber)
	assert.NotEqual(t, later.QueueNumber, res.Entry.QueueNumber)
}

func TestLabGateService_DoubleApprove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	entry := env.pendingEntry(t, 1)
	tech := labTech(t, "t-1")

	_, err := env.labGate.Approve(ctx, tech, entry.ID)
	require.NoError(t, err)
	events := len(env.events.Types())

	_, err = env.labGate.Approve(ctx, tech, entry.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	assert.Len(t, env.events.Types(), events, "no second approval event")
}

func TestLabGateService_Reject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	entry := env.pendingEntry(t, 1)
	tech := labTech(t, "t-1")

	_, err := env.labGate.Reject(ctx, tech, entry.ID, "  ")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	rejected, err := env.labGate.Reject(ctx, tech, entry.ID, "incomplete paperwork")
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusCancelled, rejected.Status)
	assert.Contains(t, rejected.Notes, "incomplete paperwork")

	last := env.events.Last()
	assert.Equal(t, entities.QueueEventLabAdmissionRejected, last.EventType)
	assert.Equal(t, "incomplete paperwork", last.Data["reason"])

	// never dispatchable afterwards
	res, err := env.dispatch.CallNext(ctx, doctor("d-1", "Laboratory"), "")
	require.NoError(t, err)
	assert.True(t, res.Empty)

	_, err = env.labGate.Approve(ctx, tech, entry.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestLabGateService_ListPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.pendingEntry(t, 1)
	env.clock.Advance(time.Minute)
	second := env.pendingEntry(t, 2)
	env.checkIn(t, env.addPatient(t, 3), "Cardiology", entities.PriorityMedium)

	pending, err := env.labGate.ListPending(ctx, labTech(t, "t-1"))
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)

	_, err = env.labGate.Approve(ctx, labTech(t, "t-1"), first.ID)
	require.NoError(t, err)
	pending, err = env.labGate.ListPending(ctx, labTech(t, "t-1"))
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestLabGateService_UnknownEntry(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.labGate.Approve(context.Background(), labTech(t, "t-1"), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
