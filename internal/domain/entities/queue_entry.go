package entities

import (
	"strings"
	"time"
)

// QueueStatus represents the lifecycle state of a queue entry
type QueueStatus string

const (
	QueueStatusPendingLabApproval QueueStatus = "pending_lab_approval"
	QueueStatusWaiting            QueueStatus = "waiting"
	QueueStatusInProgress         QueueStatus = "in_progress"
	QueueStatusComplete           QueueStatus = "complete"
	QueueStatusCancelled          QueueStatus = "cancelled"
	QueueStatusRejected           QueueStatus = "rejected"
)

// ActiveQueueStatuses are the states that hold a patient's place in a department
var ActiveQueueStatuses = []QueueStatus{
	QueueStatusPendingLabApproval,
	QueueStatusWaiting,
	QueueStatusInProgress,
}

// IsTerminal reports whether no further transition is allowed
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusComplete || s == QueueStatusCancelled || s == QueueStatusRejected
}

// IsActive reports whether the entry still occupies a slot in its department
func (s QueueStatus) IsActive() bool {
	return s == QueueStatusPendingLabApproval || s == QueueStatusWaiting || s == QueueStatusInProgress
}

// ServiceType represents the kind of visit a ticket was issued for
type ServiceType string

const (
	ServiceTypeConsultation ServiceType = "consultation"
	ServiceTypeFollowUp     ServiceType = "follow_up"
	ServiceTypeLabTest      ServiceType = "lab_test"
	ServiceTypeProcedure    ServiceType = "procedure"
)

// ParseServiceType normalizes a client supplied service type; empty means consultation
func ParseServiceType(value string) (ServiceType, bool) {
	switch ServiceType(strings.ToLower(strings.TrimSpace(value))) {
	case "", ServiceTypeConsultation:
		return ServiceTypeConsultation, true
	case ServiceTypeFollowUp:
		return ServiceTypeFollowUp, true
	case ServiceTypeLabTest:
		return ServiceTypeLabTest, true
	case ServiceTypeProcedure:
		return ServiceTypeProcedure, true
	}
	return "", false
}

// QueueEntry is one patient's ticket in a department's service line
type QueueEntry struct {
	ID                string      `json:"id" db:"id"`
	QueueNumber       string      `json:"queue_number" db:"queue_number"`
	Department        string      `json:"department" db:"department"`
	ServiceType       ServiceType `json:"service_type" db:"service_type"`
	Priority          Priority    `json:"priority" db:"priority"`
	Status            QueueStatus `json:"status" db:"status"`
	PatientID         string      `json:"patient_id" db:"patient_id"`
	ServerID          *string     `json:"server_id,omitempty" db:"server_id"`
	JoinedAt          time.Time   `json:"joined_at" db:"joined_at"`
	ServiceStartTime  *time.Time  `json:"service_start_time,omitempty" db:"service_start_time"`
	ServiceEndTime    *time.Time  `json:"service_end_time,omitempty" db:"service_end_time"`
	EstimatedWaitTime int         `json:"estimated_wait_time" db:"estimated_wait_time"`
	ActualWaitTime    *int        `json:"actual_wait_time,omitempty" db:"actual_wait_time"`
	Notes             string      `json:"notes,omitempty" db:"notes"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so stores and callers never share pointers
func (e *QueueEntry) Clone() *QueueEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.ServerID != nil {
		v := *e.ServerID
		c.ServerID = &v
	}
	if e.ServiceStartTime != nil {
		v := *e.ServiceStartTime
		c.ServiceStartTime = &v
	}
	if e.ServiceEndTime != nil {
		v := *e.ServiceEndTime
		c.ServiceEndTime = &v
	}
	if e.ActualWaitTime != nil {
		v := *e.ActualWaitTime
		c.ActualWaitTime = &v
	}
	return &c
}

// AssignedTo reports whether the entry is held by the given server
func (e *QueueEntry) AssignedTo(serverID string) bool {
	return e.ServerID != nil && *e.ServerID == serverID
}

// AppendNote adds a line to the free-text notes
func (e *QueueEntry) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if e.Notes == "" {
		e.Notes = note
		return
	}
	e.Notes = e.Notes + "\n" + note
}
