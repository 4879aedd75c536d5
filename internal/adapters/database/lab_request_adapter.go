package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

var labRequestColumns = []interface{}{
	"id", "queue_entry_id", "patient_id", "requested_by", "handled_by", "test_name", "notes",
	"status", "result", "rejection_reason", "created_at", "updated_at", "completed_at",
}

// LabRequestAdapter implements the LabRequestRepository interface
type LabRequestAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewLabRequestAdapter creates a new lab request adapter
func NewLabRequestAdapter(client *postgres.Client) repositories.LabRequestRepository {
	return &LabRequestAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func scanLabRequest(row rowScanner) (*entities.LabRequest, error) {
	req := &entities.LabRequest{}
	var handledBy sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.QueueEntryID,
		&req.PatientID,
		&req.RequestedBy,
		&handledBy,
		&req.TestName,
		&req.Notes,
		&req.Status,
		&req.Result,
		&req.RejectionReason,
		&req.CreatedAt,
		&req.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	req.HandledBy = stringPtr(handledBy)
	req.CompletedAt = timePtr(completedAt)
	return req, nil
}

// Create creates a new lab request
func (a *LabRequestAdapter) Create(ctx context.Context, req *entities.LabRequest) error {
	query, args, err := a.db.Insert("lab_requests").Rows(goqu.Record{
		"id":               req.ID,
		"queue_entry_id":   req.QueueEntryID,
		"patient_id":       req.PatientID,
		"requested_by":     req.RequestedBy,
		"handled_by":       nullableString(req.HandledBy),
		"test_name":        req.TestName,
		"notes":            req.Notes,
		"status":           req.Status,
		"result":           req.Result,
		"rejection_reason": req.RejectionReason,
		"created_at":       req.CreatedAt,
		"updated_at":       req.UpdatedAt,
		"completed_at":     nullableTime(req.CompletedAt),
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError("failed to create lab request", err)
	}
	return nil
}

// GetByID retrieves a lab request by ID
func (a *LabRequestAdapter) GetByID(ctx context.Context, id string) (*entities.LabRequest, error) {
	query, args, err := a.db.Select(labRequestColumns...).
		From("lab_requests").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	req, err := scanLabRequest(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("lab request %s not found", id)).
			WithCode(apperrors.CodeLabRequestNotFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get lab request", err)
	}
	return req, nil
}

// ListByQueueEntry retrieves the lab requests of a queue entry, oldest first
func (a *LabRequestAdapter) ListByQueueEntry(ctx context.Context, queueEntryID string) ([]*entities.LabRequest, error) {
	query, args, err := a.db.Select(labRequestColumns...).
		From("lab_requests").
		Where(goqu.Ex{"queue_entry_id": queueEntryID}).
		Order(goqu.C("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list lab requests", err)
	}
	defer rows.Close()

	var requests []*entities.LabRequest
	for rows.Next() {
		req, err := scanLabRequest(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan lab request", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate lab requests", err)
	}
	return requests, nil
}

// Transition persists req only if its stored status is still from
func (a *LabRequestAdapter) Transition(ctx context.Context, req *entities.LabRequest, from entities.LabRequestStatus) (bool, error) {
	query, args, err := a.db.Update("lab_requests").
		Set(goqu.Record{
			"status":           req.Status,
			"handled_by":       nullableString(req.HandledBy),
			"result":           req.Result,
			"rejection_reason": req.RejectionReason,
			"updated_at":       req.UpdatedAt,
			"completed_at":     nullableTime(req.CompletedAt),
		}).
		Where(goqu.Ex{"id": req.ID, "status": from}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to update lab request", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return rowsAffected == 1, nil
}
