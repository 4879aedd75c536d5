package entities

import (
	"time"

	"github.com/google/uuid"
)

// QueueEventType names a lifecycle change pushed to subscribers
type QueueEventType string

const (
	QueueEventTicketCreated        QueueEventType = "ticket_created"
	QueueEventLabPending           QueueEventType = "lab_pending"
	QueueEventLabApproved          QueueEventType = "lab_approved"
	QueueEventLabAdmissionRejected QueueEventType = "lab_admission_rejected"
	QueueEventPatientCalled        QueueEventType = "patient_called"
	QueueEventServiceCompleted     QueueEventType = "service_completed"
	QueueEventEntryCancelled       QueueEventType = "entry_cancelled"
	QueueEventEntryRejected        QueueEventType = "entry_rejected"
	QueueEventLabRequestCreated    QueueEventType = "lab_request_created"
	QueueEventLabRequestStarted    QueueEventType = "lab_request_started"
	QueueEventLabRequestCompleted  QueueEventType = "lab_request_completed"
)

// QueueEvent is the single logical event emitted per committed transition
type QueueEvent struct {
	ID          string                 `json:"id"`
	EventType   QueueEventType         `json:"event_type"`
	Department  string                 `json:"department"`
	QueueNumber string                 `json:"queue_number"`
	PatientID   string                 `json:"patient_id"`
	EntryID     string                 `json:"entry_id"`
	Status      QueueStatus            `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// NewQueueEvent builds an event describing entry after a transition
func NewQueueEvent(eventType QueueEventType, entry *QueueEntry, at time.Time, data map[string]interface{}) *QueueEvent {
	return &QueueEvent{
		ID:          uuid.New().String(),
		EventType:   eventType,
		Department:  entry.Department,
		QueueNumber: entry.QueueNumber,
		PatientID:   entry.PatientID,
		EntryID:     entry.ID,
		Status:      entry.Status,
		Timestamp:   at,
		Data:        data,
	}
}

// DataString returns a string payload value or ""
func (e *QueueEvent) DataString(key string) string {
	if e.Data == nil {
		return ""
	}
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}
