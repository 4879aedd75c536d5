package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// Dispatch outcomes recorded in metrics
const (
	dispatchCalled    = "called"
	dispatchEmpty     = "empty"
	dispatchBusy      = "server_busy"
	dispatchLostRace  = "lost_race"
	dispatchContended = "contended"
)

// DispatchResult is the outcome of a call-next. Empty is a normal result,
// not an error.
type DispatchResult struct {
	Empty      bool                 `json:"empty"`
	Department string               `json:"department"`
	Entry      *entities.QueueEntry `json:"entry,omitempty"`
}

// DispatchService hands the next waiting patient of a department to a server
type DispatchService struct {
	entries           repositories.QueueEntryRepository
	departments       *entities.DepartmentSet
	defaultDepartment string
	events            EventPublisher
	clock             clock.Clock
	maxAttempts       int
	metrics           *observability.Metrics
	logger            zerolog.Logger
}

// NewDispatchService creates a dispatch service
func NewDispatchService(
	entries repositories.QueueEntryRepository,
	departments *entities.DepartmentSet,
	defaultDepartment string,
	events EventPublisher,
	clk clock.Clock,
	maxAttempts int,
	metrics *observability.Metrics,
) *DispatchService {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &DispatchService{
		entries:           entries,
		departments:       departments,
		defaultDepartment: defaultDepartment,
		events:            publisherOrDiscard(events),
		clock:             clk,
		maxAttempts:       maxAttempts,
		metrics:           metrics,
		logger:            observability.Component("dispatch"),
	}
}

// CallNext moves the department's next waiting entry to in progress for server.
// An empty department name is resolved from the server's history.
func (s *DispatchService) CallNext(ctx context.Context, server *entities.Server, department string) (*DispatchResult, error) {
	ctx, span := observability.StartSpan(ctx, "DispatchService.CallNext")
	defer span.End()

	if current, err := inProgressFor(ctx, s.entries, server.ID); err != nil {
		return nil, err
	} else if current != nil {
		s.metrics.RecordDispatch(ctx, current.Department, dispatchBusy)
		return nil, serverBusy(current)
	}

	department, err := s.ResolveDepartment(ctx, server, department)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		next, err := s.entries.NextForDispatch(ctx, department)
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
		if next == nil {
			s.metrics.RecordDispatch(ctx, department, dispatchEmpty)
			return &DispatchResult{Empty: true, Department: department}, nil
		}

		serverID := server.ID
		called, err := transitionEntry(ctx, s.entries, next, entities.ActionCall, s.clock.Now(),
			func(e *entities.QueueEntry) { e.ServerID = &serverID })
		switch {
		case err == nil:
			s.metrics.RecordDispatch(ctx, department, dispatchCalled)
			s.logger.Info().
				Str("queue_number", called.QueueNumber).
				Str("department", department).
				Str("server_id", server.ID).
				Msg("patient called")
			s.events.Publish(entities.NewQueueEvent(entities.QueueEventPatientCalled, called, called.UpdatedAt,
				map[string]interface{}{
					"server_id":   server.ID,
					"server_name": server.Name,
				}))
			return &DispatchResult{Department: department, Entry: called}, nil

		case apperrors.HasCode(err, apperrors.CodeServerBusy):
			// a concurrent call for the same server won the in-progress slot
			s.metrics.RecordDispatch(ctx, department, dispatchBusy)
			if current, lookupErr := inProgressFor(ctx, s.entries, server.ID); lookupErr == nil && current != nil {
				return nil, serverBusy(current)
			}
			return nil, err

		case apperrors.HasCode(err, apperrors.CodeInvalidTransition):
			s.metrics.RecordDispatch(ctx, department, dispatchLostRace)
			s.logger.Debug().Str("queue_number", next.QueueNumber).Int("attempt", attempt).
				Msg("entry taken by another server, reselecting")
			continue

		default:
			observability.RecordError(span, err)
			return nil, err
		}
	}

	s.metrics.RecordDispatch(ctx, department, dispatchContended)
	return nil, apperrors.NewConflictError("queue is contended, try again").
		WithCode(apperrors.CodeDispatchContended).
		WithDetail("department", department)
}

func serverBusy(current *entities.QueueEntry) error {
	return apperrors.NewConflictError("server already has a patient in progress: " + current.QueueNumber).
		WithCode(apperrors.CodeServerBusy).
		WithDetail("current_entry", current)
}

// ResolveDepartment picks the department a server calls from. An explicit
// request wins; otherwise the server's affiliation, its last assignment, the
// department with the most waiting patients and finally the configured
// default are tried in turn. Lookup failures in the fallbacks are skipped.
func (s *DispatchService) ResolveDepartment(ctx context.Context, server *entities.Server, requested string) (string, error) {
	if strings.TrimSpace(requested) != "" {
		canonical, ok := s.departments.Resolve(requested)
		if !ok {
			return "", apperrors.NewValidationError("unknown department " + requested).WithDetail("field", "department")
		}
		return canonical, nil
	}

	if canonical, ok := s.departments.Resolve(server.Department); ok {
		return canonical, nil
	}

	if last, err := s.entries.LastAssignedDepartment(ctx, server.ID); err != nil {
		s.logger.Warn().Err(err).Str("server_id", server.ID).Msg("last assignment lookup failed")
	} else if canonical, ok := s.departments.Resolve(last); ok {
		return canonical, nil
	}

	if busiest, err := s.entries.BusiestDepartment(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("busiest department lookup failed")
	} else if canonical, ok := s.departments.Resolve(busiest); ok {
		return canonical, nil
	}

	return s.defaultDepartment, nil
}
