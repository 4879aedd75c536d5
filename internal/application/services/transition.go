package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// EventPublisher receives events after their transition is stored. Publish
// must not block the caller.
type EventPublisher interface {
	Publish(event *entities.QueueEvent)
}

type discardPublisher struct{}

func (discardPublisher) Publish(*entities.QueueEvent) {}

func publisherOrDiscard(p EventPublisher) EventPublisher {
	if p == nil {
		return discardPublisher{}
	}
	return p
}

// invalidTransition reports an action the entry's current status does not allow
func invalidTransition(entry *entities.QueueEntry, action entities.QueueAction, err error) *apperrors.AppError {
	return &apperrors.AppError{
		Type:    apperrors.ErrorTypeConflict,
		Code:    apperrors.CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s entry %s while it is %s", action, entry.QueueNumber, entry.Status),
		Err:     err,
		Details: map[string]interface{}{
			"entry_id":       entry.ID,
			"queue_number":   entry.QueueNumber,
			"current_status": entry.Status,
			"action":         action,
		},
	}
}

// transitionEntry applies action to a copy of entry and stores it only if the
// stored status still matches. prepare runs before the action, for fields the
// action depends on such as the server assignment. The returned entry is the
// stored state; entry itself is never modified.
func transitionEntry(
	ctx context.Context,
	repo repositories.QueueEntryRepository,
	entry *entities.QueueEntry,
	action entities.QueueAction,
	now time.Time,
	prepare func(*entities.QueueEntry),
) (*entities.QueueEntry, error) {
	next := entry.Clone()
	if prepare != nil {
		prepare(next)
	}
	if err := next.Apply(action, now); err != nil {
		if errors.Is(err, entities.ErrInvalidTransition) {
			return nil, invalidTransition(entry, action, err)
		}
		return nil, err
	}

	ok, err := repo.Transition(ctx, next, entry.Status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invalidTransition(entry, action, fmt.Errorf("entry changed concurrently")).
			WithDetail("reason", "stale")
	}
	return next, nil
}
