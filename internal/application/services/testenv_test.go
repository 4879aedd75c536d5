package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospitalqueue/internal/adapters/cache"
	"github.com/zatekoja/hospitalqueue/internal/adapters/memory"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
)

// morning is 09:00 on a Monday in UTC, the zone every test env runs in
var morning = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

var testDepartments = []string{"General Medicine", "Cardiology", "Pediatrics", "Laboratory", "ENT Clinic"}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*entities.QueueEvent
}

func (p *recordingPublisher) Publish(event *entities.QueueEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Types() []entities.QueueEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]entities.QueueEventType, len(p.events))
	for i, e := range p.events {
		types[i] = e.EventType
	}
	return types
}

func (p *recordingPublisher) Last() *entities.QueueEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

type testEnv struct {
	store     *memory.Store
	entries   repositories.QueueEntryRepository
	patients  repositories.PatientRepository
	clock     *clock.FakeClock
	events    *recordingPublisher
	tickets   *TicketNumberGenerator
	estimator *WaitTimeEstimator
	queue     *QueueService
	dispatch  *DispatchService
	labGate   *LabGateService
	labs      *LabRequestService
	display   *DisplayService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	env := &testEnv{
		store:    store,
		entries:  store.QueueEntries(),
		patients: store.Patients(),
		clock:    clock.Fake(morning),
		events:   &recordingPublisher{},
	}
	departments := entities.NewDepartmentSet(testDepartments)

	env.tickets = NewTicketNumberGenerator(env.entries, env.clock, time.UTC, 50)
	env.estimator = NewWaitTimeEstimator(env.entries, cache.NewMemoryAdapter(), env.clock, time.UTC, DefaultServiceMinutes, 0)
	env.queue = NewQueueService(env.entries, env.patients, env.tickets, env.estimator, departments, env.events, env.clock, 5, nil)
	env.dispatch = NewDispatchService(env.entries, departments, "General Medicine", env.events, env.clock, 5, nil)
	env.labGate = NewLabGateService(env.entries, env.events, env.clock, nil)
	env.labs = NewLabRequestService(store.LabRequests(), env.entries, env.events, env.clock)
	env.display = NewDisplayService(env.entries, env.queue, env.estimator, env.clock)
	return env
}

// addPatient registers a patient holding card CARD-<n>
func (env *testEnv) addPatient(t *testing.T, n int) *entities.Patient {
	t.Helper()
	p := &entities.Patient{
		ID:         fmt.Sprintf("p-%d", n),
		CardNumber: fmt.Sprintf("CARD-%03d", n),
		FullName:   fmt.Sprintf("Patient %d", n),
		Phone:      fmt.Sprintf("+23480000%05d", n),
		CreatedAt:  morning,
	}
	require.NoError(t, env.patients.Create(context.Background(), p))
	return p
}

func (env *testEnv) checkIn(t *testing.T, patient *entities.Patient, department string, priority entities.Priority) *entities.QueueEntry {
	t.Helper()
	res, err := env.queue.CheckIn(context.Background(), CheckInRequest{
		PatientID:  patient.ID,
		Department: department,
		Priority:   string(priority),
	})
	require.NoError(t, err)
	return res.Entry
}

func doctor(id, department string) *entities.Server {
	return &entities.Server{ID: id, Name: "Dr " + id, Role: entities.RoleDoctor, Department: department}
}

func labTech(t *testing.T, id string) entities.LabTechnician {
	t.Helper()
	s := &entities.Server{ID: id, Name: "Tech " + id, Role: entities.RoleLabTechnician, Department: "Laboratory"}
	tech, ok := s.AsLabTechnician()
	require.True(t, ok)
	return tech
}

// failingEntries fails the read paths the estimator and generator use
type failingEntries struct {
	repositories.QueueEntryRepository
	err error
}

func (f failingEntries) Count(context.Context, repositories.QueueEntryFilter) (int, error) {
	return 0, f.err
}

func (f failingEntries) AverageActualWait(context.Context, repositories.WaitSampleQuery) (float64, int, error) {
	return 0, 0, f.err
}

func (f failingEntries) ListQueueNumbers(context.Context, string, time.Time) ([]string, error) {
	return nil, f.err
}
