package entities

import "time"

// NotificationChannel represents the delivery channel
type NotificationChannel string

const (
	ChannelSMS NotificationChannel = "sms"
)

// NotificationStatus represents the delivery status
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// QueueNotification tracks every outbound message attempt for a queue entry
type QueueNotification struct {
	ID           string              `json:"id" db:"id"`
	EntryID      string              `json:"entry_id" db:"entry_id"`
	EventType    QueueEventType      `json:"event_type" db:"event_type"`
	Channel      NotificationChannel `json:"channel" db:"channel"`
	Recipient    string              `json:"recipient" db:"recipient"`
	Body         string              `json:"body" db:"body"`
	Status       NotificationStatus  `json:"status" db:"status"`
	MessageID    *string             `json:"message_id,omitempty" db:"message_id"`
	ErrorMessage *string             `json:"error_message,omitempty" db:"error_message"`
	SentAt       *time.Time          `json:"sent_at,omitempty" db:"sent_at"`
	FailedAt     *time.Time          `json:"failed_at,omitempty" db:"failed_at"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" db:"updated_at"`
}
