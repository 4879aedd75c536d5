package entities

import (
	"fmt"
	"time"
)

// LabRequestStatus represents the state of a lab test ordered for a queue entry
type LabRequestStatus string

const (
	LabRequestPending    LabRequestStatus = "pending"
	LabRequestInProgress LabRequestStatus = "in_progress"
	LabRequestComplete   LabRequestStatus = "complete"
	LabRequestRejected   LabRequestStatus = "rejected"
)

// LabRequestAction is a lab technician's action on a lab request
type LabRequestAction string

const (
	LabActionStart    LabRequestAction = "start"
	LabActionComplete LabRequestAction = "complete"
	LabActionReject   LabRequestAction = "reject"
)

var labRequestTransitions = map[LabRequestAction]struct {
	from []LabRequestStatus
	to   LabRequestStatus
}{
	LabActionStart:    {from: []LabRequestStatus{LabRequestPending}, to: LabRequestInProgress},
	LabActionComplete: {from: []LabRequestStatus{LabRequestInProgress}, to: LabRequestComplete},
	LabActionReject:   {from: []LabRequestStatus{LabRequestPending, LabRequestInProgress}, to: LabRequestRejected},
}

// LabRequest is a test a doctor orders for a patient in the queue
type LabRequest struct {
	ID              string           `json:"id" db:"id"`
	QueueEntryID    string           `json:"queue_entry_id" db:"queue_entry_id"`
	PatientID       string           `json:"patient_id" db:"patient_id"`
	RequestedBy     string           `json:"requested_by" db:"requested_by"`
	HandledBy       *string          `json:"handled_by,omitempty" db:"handled_by"`
	TestName        string           `json:"test_name" db:"test_name"`
	Notes           string           `json:"notes,omitempty" db:"notes"`
	Status          LabRequestStatus `json:"status" db:"status"`
	Result          string           `json:"result,omitempty" db:"result"`
	RejectionReason string           `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
}

// NextLabStatus returns the status reached by applying action from the given status
func NextLabStatus(from LabRequestStatus, action LabRequestAction) (LabRequestStatus, bool) {
	rule, ok := labRequestTransitions[action]
	if !ok {
		return "", false
	}
	for _, s := range rule.from {
		if s == from {
			return rule.to, true
		}
	}
	return "", false
}

// Apply moves the lab request through action, recording the handling technician
func (r *LabRequest) Apply(action LabRequestAction, techID string, now time.Time) error {
	to, ok := NextLabStatus(r.Status, action)
	if !ok {
		return fmt.Errorf("%w: lab request %s from %s", ErrInvalidTransition, action, r.Status)
	}
	r.Status = to
	r.UpdatedAt = now
	if techID != "" {
		id := techID
		r.HandledBy = &id
	}
	if to == LabRequestComplete || to == LabRequestRejected {
		done := now
		r.CompletedAt = &done
	}
	return nil
}

// Clone returns a deep copy
func (r *LabRequest) Clone() *LabRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.HandledBy != nil {
		v := *r.HandledBy
		c.HandledBy = &v
	}
	if r.CompletedAt != nil {
		v := *r.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}
