package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/clients/postgres"
)

// AppointmentAdapter implements the read-only AppointmentRepository
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Count returns the number of appointments
func (a *AppointmentAdapter) Count(ctx context.Context) (int, error) {
	return countRows(ctx, a.client, a.db.Select(goqu.COUNT("*")).From("appointments"))
}

// CardNumberExists reports whether an appointment holds the card number
func (a *AppointmentAdapter) CardNumberExists(ctx context.Context, cardNumber string) (bool, error) {
	n, err := countRows(ctx, a.client, a.db.Select(goqu.COUNT("*")).From("appointments").
		Where(goqu.Ex{"card_number": cardNumber}))
	return n > 0, err
}
