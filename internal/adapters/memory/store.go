// Package memory is an in-process store that enforces the same uniqueness
// and compare-and-swap rules as the PostgreSQL adapters. It backs
// STORE_DRIVER=memory and the service tests.
package memory

import (
	"sync"

	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
)

// Store holds every table behind one mutex
type Store struct {
	mu            sync.RWMutex
	entries       map[string]*entities.QueueEntry
	patients      map[string]*entities.Patient
	appointments  map[string]*entities.Appointment
	staff         map[string]*entities.Server
	labRequests   map[string]*entities.LabRequest
	notifications map[string]*entities.QueueNotification
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		entries:       make(map[string]*entities.QueueEntry),
		patients:      make(map[string]*entities.Patient),
		appointments:  make(map[string]*entities.Appointment),
		staff:         make(map[string]*entities.Server),
		labRequests:   make(map[string]*entities.LabRequest),
		notifications: make(map[string]*entities.QueueNotification),
	}
}

// QueueEntries returns the queue entry repository view
func (s *Store) QueueEntries() repositories.QueueEntryRepository { return &queueEntryRepo{s: s} }

// Patients returns the patient repository view
func (s *Store) Patients() repositories.PatientRepository { return &patientRepo{s: s} }

// Appointments returns the appointment repository view
func (s *Store) Appointments() repositories.AppointmentRepository { return &appointmentRepo{s: s} }

// Staff returns the staff repository view
func (s *Store) Staff() repositories.StaffRepository { return &staffRepo{s: s} }

// LabRequests returns the lab request repository view
func (s *Store) LabRequests() repositories.LabRequestRepository { return &labRequestRepo{s: s} }

// Notifications returns the notification repository view
func (s *Store) Notifications() repositories.NotificationRepository { return &notificationRepo{s: s} }

// AddAppointment seeds a booking; appointments are otherwise read-only here
func (s *Store) AddAppointment(a *entities.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *a
	s.appointments[a.ID] = &c
}
