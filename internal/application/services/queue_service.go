package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// CheckInRequest is a kiosk or front-desk check-in. Exactly one of
// CardNumber and PatientID identifies the patient.
type CheckInRequest struct {
	CardNumber          string `json:"card_number,omitempty"`
	PatientID           string `json:"patient_id,omitempty"`
	Department          string `json:"department"`
	Priority            string `json:"priority,omitempty"`
	ServiceType         string `json:"service_type,omitempty"`
	RequiresLabApproval bool   `json:"requires_lab_approval,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

// CheckInResult is the ticket handed back to the patient
type CheckInResult struct {
	QueueNumber       string               `json:"queue_number"`
	EstimatedWaitTime int                  `json:"estimated_wait_time"`
	Status            entities.QueueStatus `json:"status"`
	Entry             *entities.QueueEntry `json:"entry"`
}

// TicketStatus answers a status query. Position and estimate are only set
// while the ticket is waiting.
type TicketStatus struct {
	QueueNumber       string               `json:"queue_number"`
	Department        string               `json:"department"`
	Status            entities.QueueStatus `json:"status"`
	Position          *int                 `json:"position,omitempty"`
	EstimatedWaitTime *int                 `json:"estimated_wait_time,omitempty"`
}

// ActiveQueue is a department's current workload, each list in dispatch order
type ActiveQueue struct {
	Department string                 `json:"department"`
	InProgress []*entities.QueueEntry `json:"in_progress"`
	Waiting    []*entities.QueueEntry `json:"waiting"`
}

// QueueService owns check-in and the non-dispatch transitions of queue entries
type QueueService struct {
	entries     repositories.QueueEntryRepository
	patients    repositories.PatientRepository
	tickets     *TicketNumberGenerator
	estimator   *WaitTimeEstimator
	departments *entities.DepartmentSet
	events      EventPublisher
	clock       clock.Clock
	maxAttempts int
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

// NewQueueService creates a queue service
func NewQueueService(
	entries repositories.QueueEntryRepository,
	patients repositories.PatientRepository,
	tickets *TicketNumberGenerator,
	estimator *WaitTimeEstimator,
	departments *entities.DepartmentSet,
	events EventPublisher,
	clk clock.Clock,
	maxAttempts int,
	metrics *observability.Metrics,
) *QueueService {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &QueueService{
		entries:     entries,
		patients:    patients,
		tickets:     tickets,
		estimator:   estimator,
		departments: departments,
		events:      publisherOrDiscard(events),
		clock:       clk,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		logger:      observability.Component("queue_service"),
	}
}

// ResolveDepartment returns the canonical department name or a validation error
func (s *QueueService) ResolveDepartment(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", apperrors.NewValidationError("department is required").WithDetail("field", "department")
	}
	canonical, ok := s.departments.Resolve(name)
	if !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown department %q", name)).
			WithDetail("field", "department").
			WithDetail("allowed", s.departments.Names())
	}
	return canonical, nil
}

// CheckIn issues a ticket for a patient in a department
func (s *QueueService) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResult, error) {
	ctx, span := observability.StartSpan(ctx, "QueueService.CheckIn")
	defer span.End()

	department, err := s.ResolveDepartment(req.Department)
	if err != nil {
		return nil, err
	}
	priority, ok := entities.ParsePriority(req.Priority)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown priority %q", req.Priority)).WithDetail("field", "priority")
	}
	serviceType, ok := entities.ParseServiceType(req.ServiceType)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown service type %q", req.ServiceType)).WithDetail("field", "service_type")
	}

	patient, err := s.lookupPatient(ctx, req)
	if err != nil {
		return nil, err
	}

	if existing, err := s.activeEntry(ctx, patient.ID, department); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, duplicateActive(existing)
	}

	status := entities.QueueStatusWaiting
	if req.RequiresLabApproval {
		status = entities.QueueStatusPendingLabApproval
	}
	estimate := s.estimator.LoadBased(ctx, department)

	var entry *entities.QueueEntry
	for attempt := 1; ; attempt++ {
		number, err := s.tickets.Next(ctx, department)
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}

		now := s.clock.Now()
		entry = &entities.QueueEntry{
			ID:                uuid.New().String(),
			QueueNumber:       number,
			Department:        department,
			ServiceType:       serviceType,
			Priority:          priority,
			Status:            status,
			PatientID:         patient.ID,
			JoinedAt:          now,
			EstimatedWaitTime: estimate,
			Notes:             strings.TrimSpace(req.Notes),
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		err = s.entries.Create(ctx, entry)
		if err == nil {
			break
		}
		switch {
		case apperrors.HasCode(err, apperrors.CodeQueueNumberTaken):
			if attempt >= s.maxAttempts {
				return nil, apperrors.NewGenerationFailedError("queue number kept colliding with concurrent check-ins", err)
			}
			s.logger.Debug().Str("queue_number", number).Int("attempt", attempt).Msg("queue number taken, regenerating")
			continue
		case apperrors.HasCode(err, apperrors.CodeDuplicateActiveEntry):
			if existing, lookupErr := s.activeEntry(ctx, patient.ID, department); lookupErr == nil && existing != nil {
				return nil, duplicateActive(existing)
			}
			return nil, err
		default:
			observability.RecordError(span, err)
			return nil, err
		}
	}

	s.metrics.RecordTicketIssued(ctx, department, req.RequiresLabApproval)
	s.logger.Info().
		Str("queue_number", entry.QueueNumber).
		Str("department", department).
		Str("status", string(entry.Status)).
		Msg("ticket issued")

	eventType := entities.QueueEventTicketCreated
	if entry.Status == entities.QueueStatusPendingLabApproval {
		eventType = entities.QueueEventLabPending
	}
	s.events.Publish(entities.NewQueueEvent(eventType, entry, entry.CreatedAt, map[string]interface{}{
		"estimated_wait": estimate,
		"priority":       string(priority),
	}))

	return &CheckInResult{
		QueueNumber:       entry.QueueNumber,
		EstimatedWaitTime: estimate,
		Status:            entry.Status,
		Entry:             entry,
	}, nil
}

func (s *QueueService) lookupPatient(ctx context.Context, req CheckInRequest) (*entities.Patient, error) {
	card := strings.TrimSpace(req.CardNumber)
	id := strings.TrimSpace(req.PatientID)
	switch {
	case card == "" && id == "":
		return nil, apperrors.NewValidationError("card_number or patient_id is required").WithDetail("field", "card_number")
	case card != "" && id != "":
		return nil, apperrors.NewValidationError("provide either card_number or patient_id, not both").WithDetail("field", "card_number")
	case card != "":
		return s.patients.GetByCardNumber(ctx, strings.ToUpper(card))
	default:
		return s.patients.GetByID(ctx, id)
	}
}

func (s *QueueService) activeEntry(ctx context.Context, patientID, department string) (*entities.QueueEntry, error) {
	existing, err := s.entries.List(ctx, repositories.QueueEntryFilter{
		PatientID:  patientID,
		Department: department,
		Statuses:   entities.ActiveQueueStatuses,
		Limit:      1,
	})
	if err != nil || len(existing) == 0 {
		return nil, err
	}
	return existing[0], nil
}

func duplicateActive(existing *entities.QueueEntry) error {
	return apperrors.NewConflictError(fmt.Sprintf("patient already holds %s in %s", existing.QueueNumber, existing.Department)).
		WithCode(apperrors.CodeDuplicateActiveEntry).
		WithDetail("existing_entry", existing)
}

// GetStatus reports a ticket's state and, while waiting, its place in line
func (s *QueueService) GetStatus(ctx context.Context, queueNumber string) (*TicketStatus, error) {
	queueNumber = strings.ToUpper(strings.TrimSpace(queueNumber))
	if queueNumber == "" {
		return nil, apperrors.NewValidationError("queue number is required")
	}

	entry, err := s.entries.GetByQueueNumber(ctx, queueNumber)
	if err != nil {
		return nil, err
	}

	status := &TicketStatus{
		QueueNumber: entry.QueueNumber,
		Department:  entry.Department,
		Status:      entry.Status,
	}
	if entry.Status == entities.QueueStatusWaiting {
		estimate := s.estimator.Positional(ctx, entry)
		if estimate.Position > 0 {
			status.Position = &estimate.Position
		}
		status.EstimatedWaitTime = &estimate.Minutes
	}
	return status, nil
}

// Complete finishes the server's in-progress entry
func (s *QueueService) Complete(ctx context.Context, server *entities.Server, notes string) (*entities.QueueEntry, error) {
	ctx, span := observability.StartSpan(ctx, "QueueService.Complete")
	defer span.End()

	current, err := s.inProgressFor(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NewNotFoundError("no patient is currently in progress for this server").
			WithCode(apperrors.CodeNoActiveEntry)
	}

	completed, err := transitionEntry(ctx, s.entries, current, entities.ActionComplete, s.clock.Now(),
		func(e *entities.QueueEntry) { e.AppendNote(notes) })
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	if completed.ActualWaitTime != nil {
		s.metrics.RecordServiceMinutes(ctx, completed.Department, *completed.ActualWaitTime)
	}
	s.estimator.Invalidate(ctx, completed.Department)
	s.logger.Info().Str("queue_number", completed.QueueNumber).Str("server_id", server.ID).Msg("service completed")

	s.events.Publish(entities.NewQueueEvent(entities.QueueEventServiceCompleted, completed, completed.UpdatedAt,
		map[string]interface{}{"server_id": server.ID}))
	return completed, nil
}

// Cancel is the administrative cancellation of a waiting or in-progress entry
func (s *QueueService) Cancel(ctx context.Context, entryID, reason string) (*entities.QueueEntry, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	cancelled, err := transitionEntry(ctx, s.entries, entry, entities.ActionCancel, s.clock.Now(),
		func(e *entities.QueueEntry) {
			if reason != "" {
				e.AppendNote("cancelled: " + reason)
			}
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("queue_number", cancelled.QueueNumber).Str("reason", reason).Msg("entry cancelled")
	s.events.Publish(entities.NewQueueEvent(entities.QueueEventEntryCancelled, cancelled, cancelled.UpdatedAt,
		map[string]interface{}{"reason": reason}))
	return cancelled, nil
}

// ActiveQueue lists the department's in-progress and waiting entries
func (s *QueueService) ActiveQueue(ctx context.Context, department string) (*ActiveQueue, error) {
	department, err := s.ResolveDepartment(department)
	if err != nil {
		return nil, err
	}

	inProgress, err := s.entries.List(ctx, repositories.QueueEntryFilter{
		Department: department,
		Statuses:   []entities.QueueStatus{entities.QueueStatusInProgress},
	})
	if err != nil {
		return nil, err
	}
	waiting, err := s.entries.List(ctx, repositories.QueueEntryFilter{
		Department: department,
		Statuses:   []entities.QueueStatus{entities.QueueStatusWaiting},
	})
	if err != nil {
		return nil, err
	}

	return &ActiveQueue{
		Department: department,
		InProgress: nonNil(inProgress),
		Waiting:    nonNil(waiting),
	}, nil
}

func (s *QueueService) inProgressFor(ctx context.Context, serverID string) (*entities.QueueEntry, error) {
	return inProgressFor(ctx, s.entries, serverID)
}

func inProgressFor(ctx context.Context, repo repositories.QueueEntryRepository, serverID string) (*entities.QueueEntry, error) {
	current, err := repo.List(ctx, repositories.QueueEntryFilter{
		ServerID: serverID,
		Statuses: []entities.QueueStatus{entities.QueueStatusInProgress},
		Limit:    1,
	})
	if err != nil || len(current) == 0 {
		return nil, err
	}
	return current[0], nil
}

// nonNil keeps empty lists encoding as [] rather than null
func nonNil(entries []*entities.QueueEntry) []*entities.QueueEntry {
	if entries == nil {
		return []*entities.QueueEntry{}
	}
	return entries
}
