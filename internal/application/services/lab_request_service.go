package services

import (
	"context"
	"errors"
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

// LabRequestService manages tests doctors order for queued patients.
// Rejecting a test rejects the owning queue entry; completing one leaves it alone.
type LabRequestService struct {
	requests repositories.LabRequestRepository
	entries  repositories.QueueEntryRepository
	events   EventPublisher
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewLabRequestService creates a lab request service
func NewLabRequestService(
	requests repositories.LabRequestRepository,
	entries repositories.QueueEntryRepository,
	events EventPublisher,
	clk clock.Clock,
) *LabRequestService {
	return &LabRequestService{
		requests: requests,
		entries:  entries,
		events:   publisherOrDiscard(events),
		clock:    clk,
		logger:   observability.Component("lab_requests"),
	}
}

// Request orders a test for a waiting or in-progress entry
func (s *LabRequestService) Request(ctx context.Context, doctor entities.Doctor, entryID, testName, notes string) (*entities.LabRequest, error) {
	testName = strings.TrimSpace(testName)
	if testName == "" {
		return nil, apperrors.NewValidationError("test_name is required").WithDetail("field", "test_name")
	}

	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != entities.QueueStatusWaiting && entry.Status != entities.QueueStatusInProgress {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("lab tests can only be requested for waiting or in-progress entries, %s is %s", entry.QueueNumber, entry.Status)).
			WithCode(apperrors.CodeInvalidTransition).
			WithDetail("current_status", entry.Status)
	}

	now := s.clock.Now()
	req := &entities.LabRequest{
		ID:           uuid.New().String(),
		QueueEntryID: entry.ID,
		PatientID:    entry.PatientID,
		RequestedBy:  doctor.ID(),
		TestName:     testName,
		Notes:        strings.TrimSpace(notes),
		Status:       entities.LabRequestPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info().Str("lab_request_id", req.ID).Str("queue_number", entry.QueueNumber).Str("test", testName).Msg("lab test requested")
	s.events.Publish(entities.NewQueueEvent(entities.QueueEventLabRequestCreated, entry, now, labEventData(req)))
	return req, nil
}

// Start marks a pending request as being worked on
func (s *LabRequestService) Start(ctx context.Context, tech entities.LabTechnician, id string) (*entities.LabRequest, error) {
	req, err := s.advance(ctx, tech, id, entities.LabActionStart, nil)
	if err != nil {
		return nil, err
	}
	s.publishFor(ctx, entities.QueueEventLabRequestStarted, req)
	return req, nil
}

// Complete records the result of an in-progress request
func (s *LabRequestService) Complete(ctx context.Context, tech entities.LabTechnician, id, result string) (*entities.LabRequest, error) {
	result = strings.TrimSpace(result)
	if result == "" {
		return nil, apperrors.NewValidationError("result is required").WithDetail("field", "result")
	}
	req, err := s.advance(ctx, tech, id, entities.LabActionComplete, func(r *entities.LabRequest) { r.Result = result })
	if err != nil {
		return nil, err
	}
	s.publishFor(ctx, entities.QueueEventLabRequestCompleted, req)
	return req, nil
}

// Reject rejects the request and, with it, the owning queue entry. Other lab
// requests of the entry are left as they are. Rejecting an already rejected
// request whose entry is still active retries the entry rejection.
func (s *LabRequestService) Reject(ctx context.Context, tech entities.LabTechnician, id, reason string) (*entities.LabRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("rejection reason is required").WithDetail("field", "reason")
	}

	current, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == entities.LabRequestRejected {
		return s.resumeRejection(ctx, current)
	}

	req, err := s.advance(ctx, tech, id, entities.LabActionReject, func(r *entities.LabRequest) { r.RejectionReason = reason })
	if err != nil {
		return nil, err
	}

	if err := s.rejectEntry(ctx, req, reason); err != nil {
		return nil, err
	}
	return req, nil
}

// resumeRejection completes a rejection whose entry write failed earlier
func (s *LabRequestService) resumeRejection(ctx context.Context, req *entities.LabRequest) (*entities.LabRequest, error) {
	entry, err := s.entries.GetByID(ctx, req.QueueEntryID)
	if err != nil {
		return nil, err
	}
	if entry.Status.IsTerminal() {
		return nil, labInvalidTransition(req, entities.LabActionReject, entities.ErrInvalidTransition)
	}

	s.logger.Warn().Str("lab_request_id", req.ID).Str("queue_number", entry.QueueNumber).
		Msg("entry of a rejected lab request is still active, rejecting it")
	if err := s.rejectEntry(ctx, req, req.RejectionReason); err != nil {
		return nil, err
	}
	return req, nil
}

// ListForEntry returns the entry's lab requests, oldest first
func (s *LabRequestService) ListForEntry(ctx context.Context, entryID string) ([]*entities.LabRequest, error) {
	if _, err := s.entries.GetByID(ctx, entryID); err != nil {
		return nil, err
	}
	requests, err := s.requests.ListByQueueEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []*entities.LabRequest{}
	}
	return requests, nil
}

func (s *LabRequestService) advance(
	ctx context.Context,
	tech entities.LabTechnician,
	id string,
	action entities.LabRequestAction,
	mutate func(*entities.LabRequest),
) (*entities.LabRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := req.Status
	next := req.Clone()
	if mutate != nil {
		mutate(next)
	}
	if err := next.Apply(action, tech.ID(), s.clock.Now()); err != nil {
		if errors.Is(err, entities.ErrInvalidTransition) {
			return nil, labInvalidTransition(req, action, err)
		}
		return nil, err
	}

	ok, err := s.requests.Transition(ctx, next, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, labInvalidTransition(req, action, fmt.Errorf("lab request changed concurrently"))
	}

	s.logger.Info().Str("lab_request_id", next.ID).Str("status", string(next.Status)).
		Str("technician_id", tech.ID()).Msg("lab request updated")
	return next, nil
}

// rejectEntry moves the owning entry to rejected. An entry that already
// reached a terminal state is left alone. A concurrent change to the entry is
// retried against its fresh status.
func (s *LabRequestService) rejectEntry(ctx context.Context, req *entities.LabRequest, reason string) error {
	const attempts = 3
	for attempt := 1; ; attempt++ {
		entry, err := s.entries.GetByID(ctx, req.QueueEntryID)
		if err != nil {
			return err
		}
		if entry.Status.IsTerminal() {
			s.logger.Warn().Str("queue_number", entry.QueueNumber).Str("status", string(entry.Status)).
				Msg("lab request rejected for an entry that is already closed")
			return nil
		}

		rejected, err := transitionEntry(ctx, s.entries, entry, entities.ActionLabReject, s.clock.Now(),
			func(e *entities.QueueEntry) { e.AppendNote("lab test " + req.TestName + " rejected: " + reason) })
		if apperrors.HasCode(err, apperrors.CodeInvalidTransition) && attempt < attempts {
			continue
		}
		if err != nil {
			return err
		}

		data := labEventData(req)
		data["reason"] = reason
		s.events.Publish(entities.NewQueueEvent(entities.QueueEventEntryRejected, rejected, rejected.UpdatedAt, data))
		return nil
	}
}

func (s *LabRequestService) publishFor(ctx context.Context, eventType entities.QueueEventType, req *entities.LabRequest) {
	entry, err := s.entries.GetByID(ctx, req.QueueEntryID)
	if err != nil {
		s.logger.Warn().Err(err).Str("lab_request_id", req.ID).Msg("owning entry lookup failed, event not published")
		return
	}
	s.events.Publish(entities.NewQueueEvent(eventType, entry, req.UpdatedAt, labEventData(req)))
}

func labEventData(req *entities.LabRequest) map[string]interface{} {
	return map[string]interface{}{
		"lab_request_id": req.ID,
		"test_name":      req.TestName,
		"lab_status":     string(req.Status),
	}
}

func labInvalidTransition(req *entities.LabRequest, action entities.LabRequestAction, err error) *apperrors.AppError {
	return &apperrors.AppError{
		Type:    apperrors.ErrorTypeConflict,
		Code:    apperrors.CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s lab request while it is %s", action, req.Status),
		Err:     err,
		Details: map[string]interface{}{
			"lab_request_id": req.ID,
			"current_status": req.Status,
			"action":         action,
		},
	}
}
