package repositories

import (
	"context"

	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
)

// LabRequestRepository defines the interface for lab request data operations
type LabRequestRepository interface {
	// Create creates a new lab request
	Create(ctx context.Context, request *entities.LabRequest) error

	// GetByID retrieves a lab request by ID
	GetByID(ctx context.Context, id string) (*entities.LabRequest, error)

	// ListByQueueEntry retrieves the lab requests of a queue entry, oldest first
	ListByQueueEntry(ctx context.Context, queueEntryID string) ([]*entities.LabRequest, error)

	// Transition persists request only if its stored status is still from
	Transition(ctx context.Context, request *entities.LabRequest, from entities.LabRequestStatus) (bool, error)
}

// NotificationRepository records outbound message attempts
type NotificationRepository interface {
	// Create records a new attempt
	Create(ctx context.Context, notification *entities.QueueNotification) error

	// Update records the attempt's outcome
	Update(ctx context.Context, notification *entities.QueueNotification) error

	// ListByEntry retrieves the attempts made for a queue entry
	ListByEntry(ctx context.Context, entryID string) ([]*entities.QueueNotification, error)
}
