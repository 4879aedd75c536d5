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

// LabGateService is the lab technicians' admission review of gated check-ins.
// Every operation requires the LabTechnician capability.
type LabGateService struct {
	entries repositories.QueueEntryRepository
	events  EventPublisher
	clock   clock.Clock
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewLabGateService creates a lab gate service
func NewLabGateService(
	entries repositories.QueueEntryRepository,
	events EventPublisher,
	clk clock.Clock,
	metrics *observability.Metrics,
) *LabGateService {
	return &LabGateService{
		entries: entries,
		events:  publisherOrDiscard(events),
		clock:   clk,
		metrics: metrics,
		logger:  observability.Component("lab_gate"),
	}
}

// ListPending returns every entry awaiting lab approval in dispatch order
func (s *LabGateService) ListPending(ctx context.Context, tech entities.LabTechnician) ([]*entities.QueueEntry, error) {
	pending, err := s.entries.List(ctx, repositories.QueueEntryFilter{
		Statuses: []entities.QueueStatus{entities.QueueStatusPendingLabApproval},
	})
	if err != nil {
		return nil, err
	}
	return nonNil(pending), nil
}

// Approve admits a pending entry to its department's queue. Its joined time is
// kept so the patient does not lose their place.
func (s *LabGateService) Approve(ctx context.Context, tech entities.LabTechnician, entryID string) (*entities.QueueEntry, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	approved, err := transitionEntry(ctx, s.entries, entry, entities.ActionApprove, s.clock.Now(), nil)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLabDecision(ctx, "approved")
	s.logger.Info().Str("queue_number", approved.QueueNumber).Str("technician_id", tech.ID()).Msg("lab admission approved")
	s.events.Publish(entities.NewQueueEvent(entities.QueueEventLabApproved, approved, approved.UpdatedAt,
		map[string]interface{}{"technician_id": tech.ID()}))
	return approved, nil
}

// Reject cancels a pending entry and records the reason in its notes
func (s *LabGateService) Reject(ctx context.Context, tech entities.LabTechnician, entryID, reason string) (*entities.QueueEntry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("rejection reason is required").WithDetail("field", "reason")
	}

	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	rejected, err := transitionEntry(ctx, s.entries, entry, entities.ActionRejectAdmission, s.clock.Now(),
		func(e *entities.QueueEntry) { e.AppendNote("lab admission rejected: " + reason) })
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLabDecision(ctx, "rejected")
	s.logger.Info().Str("queue_number", rejected.QueueNumber).Str("technician_id", tech.ID()).
		Str("reason", reason).Msg("lab admission rejected")
	s.events.Publish(entities.NewQueueEvent(entities.QueueEventLabAdmissionRejected, rejected, rejected.UpdatedAt,
		map[string]interface{}{
			"technician_id": tech.ID(),
			"reason":        reason,
		}))
	return rejected, nil
}
