package entities

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Appointment is a booked visit. The queue only reads appointments to keep
// card numbers unique across patients and bookings.
type Appointment struct {
	ID          string            `json:"id" db:"id"`
	PatientID   *string           `json:"patient_id,omitempty" db:"patient_id"`
	CardNumber  string            `json:"card_number" db:"card_number"`
	Department  string            `json:"department" db:"department"`
	ScheduledAt time.Time         `json:"scheduled_at" db:"scheduled_at"`
	Status      AppointmentStatus `json:"status" db:"status"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}
