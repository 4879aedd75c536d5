package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// TicketNumberGenerator issues department-scoped queue numbers such as
// CARD-001. Numbering restarts each local day; the daily sequence is read
// back from stored entries rather than kept in memory.
type TicketNumberGenerator struct {
	entries     repositories.QueueEntryRepository
	clock       clock.Clock
	location    *time.Location
	maxAttempts int
	logger      zerolog.Logger
}

// NewTicketNumberGenerator creates a generator
func NewTicketNumberGenerator(
	entries repositories.QueueEntryRepository,
	clk clock.Clock,
	location *time.Location,
	maxAttempts int,
) *TicketNumberGenerator {
	if location == nil {
		location = time.Local
	}
	if maxAttempts <= 0 {
		maxAttempts = 50
	}
	return &TicketNumberGenerator{
		entries:     entries,
		clock:       clk,
		location:    location,
		maxAttempts: maxAttempts,
		logger:      observability.Component("ticket_numbers"),
	}
}

// DepartmentCode is the uppercase first four characters of the department
// name with spaces removed, or the whole name when shorter.
func DepartmentCode(department string) string {
	compact := strings.ToUpper(strings.Join(strings.Fields(department), ""))
	runes := []rune(compact)
	if len(runes) > 4 {
		runes = runes[:4]
	}
	return string(runes)
}

func formatTicket(code string, n int) string {
	return fmt.Sprintf("%s-%03d", code, n)
}

// Next returns a queue number not held by any entry at the moment of the call.
// Callers still insert under the unique index and retry on QUEUE_NUMBER_TAKEN.
func (g *TicketNumberGenerator) Next(ctx context.Context, department string) (string, error) {
	code := DepartmentCode(department)
	if code == "" {
		return "", apperrors.NewValidationError("department is required")
	}

	since := clock.StartOfDay(g.clock.Now(), g.location)
	numbers, err := g.entries.ListQueueNumbers(ctx, department, since)
	if err != nil {
		return "", apperrors.NewGenerationFailedError("could not read today's queue numbers", err)
	}

	highest := 0
	for _, number := range numbers {
		if n, ok := ticketSequence(number, code); ok && n > highest {
			highest = n
		}
	}

	number, err := probeUnique(ctx, highest+1, g.maxAttempts,
		func(n int) string { return formatTicket(code, n) },
		g.entries.QueueNumberExists)
	if err != nil {
		g.logger.Error().Err(err).Str("department", department).Msg("queue number generation failed")
		return "", err
	}
	if number != formatTicket(code, highest+1) {
		g.logger.Debug().Str("department", department).Str("number", number).
			Msg("skipped numbers held by earlier days")
	}
	return number, nil
}

// CardNumberGenerator issues patient card numbers (CARD-001, ...), seeded by
// the combined count of patients and appointments.
type CardNumberGenerator struct {
	patients     repositories.PatientRepository
	appointments repositories.AppointmentRepository
	maxAttempts  int
}

// NewCardNumberGenerator creates a generator
func NewCardNumberGenerator(
	patients repositories.PatientRepository,
	appointments repositories.AppointmentRepository,
	maxAttempts int,
) *CardNumberGenerator {
	if maxAttempts <= 0 {
		maxAttempts = 50
	}
	return &CardNumberGenerator{
		patients:     patients,
		appointments: appointments,
		maxAttempts:  maxAttempts,
	}
}

// Next returns a card number held by no patient and no appointment
func (g *CardNumberGenerator) Next(ctx context.Context) (string, error) {
	patientCount, err := g.patients.Count(ctx)
	if err != nil {
		return "", apperrors.NewGenerationFailedError("could not count patients", err)
	}
	appointmentCount, err := g.appointments.Count(ctx)
	if err != nil {
		return "", apperrors.NewGenerationFailedError("could not count appointments", err)
	}

	return probeUnique(ctx, patientCount+appointmentCount+1, g.maxAttempts,
		func(n int) string { return fmt.Sprintf("CARD-%03d", n) },
		func(ctx context.Context, candidate string) (bool, error) {
			taken, err := g.patients.CardNumberExists(ctx, candidate)
			if err != nil || taken {
				return taken, err
			}
			return g.appointments.CardNumberExists(ctx, candidate)
		})
}

// ticketSequence returns the sequence of a number shaped CODE-NNN (at least
// three digits) issued under code
func ticketSequence(number, code string) (int, bool) {
	digits, ok := strings.CutPrefix(number, code+"-")
	if !ok || len(digits) < 3 {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
