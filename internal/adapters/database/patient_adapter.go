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

// PatientAdapter implements the PatientRepository interface
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new patient
func (a *PatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	query, args, err := a.db.Insert("patients").Rows(goqu.Record{
		"id":          patient.ID,
		"card_number": patient.CardNumber,
		"full_name":   patient.FullName,
		"phone":       patient.Phone,
		"created_at":  patient.CreatedAt,
		"updated_at":  patient.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError("failed to create patient", err)
	}
	return nil
}

func (a *PatientAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.Patient, error) {
	query, args, err := a.db.Select("id", "card_number", "full_name", "phone", "created_at", "updated_at").
		From("patients").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patient := &entities.Patient{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&patient.ID,
		&patient.CardNumber,
		&patient.FullName,
		&patient.Phone,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound).WithCode(apperrors.CodePatientNotFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}
	return patient, nil
}

// GetByID retrieves a patient by ID
func (a *PatientAdapter) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("patient with id %s not found", id))
}

// GetByCardNumber retrieves a patient by card number
func (a *PatientAdapter) GetByCardNumber(ctx context.Context, cardNumber string) (*entities.Patient, error) {
	return a.getOne(ctx, goqu.Ex{"card_number": cardNumber}, fmt.Sprintf("no patient holds card %s", cardNumber))
}

// Count returns the number of registered patients
func (a *PatientAdapter) Count(ctx context.Context) (int, error) {
	return countRows(ctx, a.client, a.db.Select(goqu.COUNT("*")).From("patients"))
}

// CardNumberExists reports whether a patient holds the card number
func (a *PatientAdapter) CardNumberExists(ctx context.Context, cardNumber string) (bool, error) {
	n, err := countRows(ctx, a.client, a.db.Select(goqu.COUNT("*")).From("patients").
		Where(goqu.Ex{"card_number": cardNumber}))
	return n > 0, err
}

func countRows(ctx context.Context, client *postgres.Client, ds *goqu.SelectDataset) (int, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count rows", err)
	}
	return count, nil
}
