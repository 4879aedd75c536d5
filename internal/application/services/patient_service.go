package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// RegisterPatientRequest is a walk-in registration at the front desk
type RegisterPatientRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// PatientService registers walk-in patients and issues their card numbers
type PatientService struct {
	patients    repositories.PatientRepository
	cards       *CardNumberGenerator
	clock       clock.Clock
	maxAttempts int
	logger      zerolog.Logger
}

// NewPatientService creates a patient service
func NewPatientService(
	patients repositories.PatientRepository,
	cards *CardNumberGenerator,
	clk clock.Clock,
	maxAttempts int,
) *PatientService {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &PatientService{
		patients:    patients,
		cards:       cards,
		clock:       clk,
		maxAttempts: maxAttempts,
		logger:      observability.Component("patients"),
	}
}

// Register creates a patient with a fresh card number. A card number taken by
// a concurrent registration is regenerated.
func (s *PatientService) Register(ctx context.Context, req RegisterPatientRequest) (*entities.Patient, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return nil, apperrors.NewValidationError("full_name is required").WithDetail("field", "full_name")
	}

	for attempt := 1; ; attempt++ {
		card, err := s.cards.Next(ctx)
		if err != nil {
			return nil, err
		}

		now := s.clock.Now()
		patient := &entities.Patient{
			ID:         uuid.New().String(),
			CardNumber: card,
			FullName:   name,
			Phone:      strings.TrimSpace(req.Phone),
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		err = s.patients.Create(ctx, patient)
		if err == nil {
			s.logger.Info().Str("patient_id", patient.ID).Str("card_number", card).Msg("patient registered")
			return patient, nil
		}
		if !apperrors.HasCode(err, apperrors.CodeCardNumberTaken) {
			return nil, err
		}
		if attempt >= s.maxAttempts {
			return nil, apperrors.NewGenerationFailedError("card number kept colliding with concurrent registrations", err)
		}
	}
}

// GetByCardNumber looks up a patient by card
func (s *PatientService) GetByCardNumber(ctx context.Context, cardNumber string) (*entities.Patient, error) {
	cardNumber = strings.ToUpper(strings.TrimSpace(cardNumber))
	if cardNumber == "" {
		return nil, apperrors.NewValidationError("card number is required")
	}
	return s.patients.GetByCardNumber(ctx, cardNumber)
}
