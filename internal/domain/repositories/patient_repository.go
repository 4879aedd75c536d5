package repositories

import (
	"context"

	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
)

// PatientRepository defines the interface for patient data operations
type PatientRepository interface {
	// Create creates a new patient; a taken card number is a CARD_NUMBER_TAKEN conflict
	Create(ctx context.Context, patient *entities.Patient) error

	// GetByID retrieves a patient by ID
	GetByID(ctx context.Context, id string) (*entities.Patient, error)

	// GetByCardNumber retrieves a patient by card number
	GetByCardNumber(ctx context.Context, cardNumber string) (*entities.Patient, error)

	// Count returns the number of registered patients
	Count(ctx context.Context) (int, error)

	// CardNumberExists reports whether a patient holds the card number
	CardNumberExists(ctx context.Context, cardNumber string) (bool, error)
}

// AppointmentRepository is the read-only view of bookings used to keep card numbers unique
type AppointmentRepository interface {
	// Count returns the number of appointments
	Count(ctx context.Context) (int, error)

	// CardNumberExists reports whether an appointment holds the card number
	CardNumberExists(ctx context.Context, cardNumber string) (bool, error)
}

// StaffRepository defines the interface for doctor and lab technician records
type StaffRepository interface {
	// Create creates a staff member
	Create(ctx context.Context, server *entities.Server) error

	// GetByID retrieves a staff member by ID
	GetByID(ctx context.Context, id string) (*entities.Server, error)
}
