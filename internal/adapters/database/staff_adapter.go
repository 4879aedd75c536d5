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

// StaffAdapter implements the StaffRepository interface
type StaffAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewStaffAdapter creates a new staff adapter
func NewStaffAdapter(client *postgres.Client) repositories.StaffRepository {
	return &StaffAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a staff member, updating name and affiliation if the ID exists
func (a *StaffAdapter) Create(ctx context.Context, server *entities.Server) error {
	query, args, err := a.db.Insert("staff").Rows(goqu.Record{
		"id":         server.ID,
		"name":       server.Name,
		"role":       server.Role,
		"department": server.Department,
		"phone":      server.Phone,
		"created_at": server.CreatedAt,
		"updated_at": server.UpdatedAt,
	}).OnConflict(goqu.DoUpdate("id", goqu.Record{
		"name":       goqu.L("EXCLUDED.name"),
		"department": goqu.L("EXCLUDED.department"),
		"phone":      goqu.L("EXCLUDED.phone"),
		"updated_at": goqu.L("EXCLUDED.updated_at"),
	})).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError("failed to create staff member", err)
	}
	return nil
}

// GetByID retrieves a staff member by ID
func (a *StaffAdapter) GetByID(ctx context.Context, id string) (*entities.Server, error) {
	query, args, err := a.db.Select("id", "name", "role", "department", "phone", "created_at", "updated_at").
		From("staff").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	server := &entities.Server{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&server.ID,
		&server.Name,
		&server.Role,
		&server.Department,
		&server.Phone,
		&server.CreatedAt,
		&server.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("staff member %s not found", id)).
			WithCode(apperrors.CodeServerNotFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get staff member", err)
	}
	return server, nil
}
