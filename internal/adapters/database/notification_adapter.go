package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// NotificationAdapter records outbound SMS attempts with sqlx
type NotificationAdapter struct {
	db *sqlx.DB
}

// NewNotificationAdapter creates a new notification adapter
func NewNotificationAdapter(db *sqlx.DB) repositories.NotificationRepository {
	return &NotificationAdapter{db: db}
}

// Create records a new attempt
func (a *NotificationAdapter) Create(ctx context.Context, n *entities.QueueNotification) error {
	query := `
		INSERT INTO queue_notifications
		(id, entry_id, event_type, channel, recipient, body, status, message_id,
		 error_message, sent_at, failed_at, created_at, updated_at)
		VALUES (:id, :entry_id, :event_type, :channel, :recipient, :body, :status, :message_id,
		 :error_message, :sent_at, :failed_at, :created_at, :updated_at)
	`
	if _, err := a.db.NamedExecContext(ctx, query, n); err != nil {
		return apperrors.NewInternalError("failed to create notification record", err)
	}
	return nil
}

// Update records the attempt's outcome
func (a *NotificationAdapter) Update(ctx context.Context, n *entities.QueueNotification) error {
	query := `
		UPDATE queue_notifications
		SET status = :status, message_id = :message_id, error_message = :error_message,
		    sent_at = :sent_at, failed_at = :failed_at, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := a.db.NamedExecContext(ctx, query, n)
	if err != nil {
		return apperrors.NewInternalError("failed to update notification record", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError("notification record " + n.ID + " not found")
	}
	return nil
}

// ListByEntry retrieves the attempts made for a queue entry
func (a *NotificationAdapter) ListByEntry(ctx context.Context, entryID string) ([]*entities.QueueNotification, error) {
	var out []*entities.QueueNotification
	query := `SELECT * FROM queue_notifications WHERE entry_id = $1 ORDER BY created_at`
	if err := a.db.SelectContext(ctx, &out, query, entryID); err != nil {
		return nil, apperrors.NewInternalError("failed to list notification records", err)
	}
	return out, nil
}
