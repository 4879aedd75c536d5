package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
)

// smsTemplates holds the patient-facing text per event type. Events without
// a template do not produce a message.
var smsTemplates = map[entities.QueueEventType]string{
	entities.QueueEventTicketCreated: "Hello {{patient_name}}, your ticket for {{department}} is {{queue_number}}. " +
		"Estimated wait: {{estimated_wait}} minutes.",
	entities.QueueEventLabPending: "Hello {{patient_name}}, your ticket {{queue_number}} for {{department}} " +
		"is awaiting lab approval.",
	entities.QueueEventLabApproved: "{{queue_number}}: you have been added to the main queue for {{department}}.",
	entities.QueueEventLabAdmissionRejected: "{{queue_number}}: your lab admission for {{department}} was not approved. " +
		"Reason: {{reason}}",
	entities.QueueEventPatientCalled:       "{{queue_number}}, it is your turn. Please proceed to {{department}}.",
	entities.QueueEventServiceCompleted:    "Thank you {{patient_name}}. Your visit to {{department}} ({{queue_number}}) is complete.",
	entities.QueueEventEntryCancelled:      "{{queue_number}} for {{department}} has been cancelled. {{reason}}",
	entities.QueueEventEntryRejected:       "{{queue_number}} for {{department}} was rejected after a lab review. Reason: {{reason}}",
	entities.QueueEventLabRequestCompleted: "{{patient_name}}, your lab result for {{queue_number}} is ready.",
}

// NotificationContext contains all data needed for notification rendering
type NotificationContext struct {
	PatientName   string
	PatientPhone  string
	QueueNumber   string
	Department    string
	Reason        string
	EstimatedWait string
}

// NotificationService turns queue events into SMS messages. Every attempt is
// recorded; failures are returned to the caller for logging and never retried
// inline.
type NotificationService struct {
	patients      repositories.PatientRepository
	notifications repositories.NotificationRepository
	sender        providers.SMSSender
	clock         clock.Clock
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	patients repositories.PatientRepository,
	notifications repositories.NotificationRepository,
	sender providers.SMSSender,
	clk clock.Clock,
	metrics *observability.Metrics,
) *NotificationService {
	return &NotificationService{
		patients:      patients,
		notifications: notifications,
		sender:        sender,
		clock:         clk,
		metrics:       metrics,
		logger:        observability.Component("notifications"),
	}
}

// Notify sends the patient message for event, if the event type has one
func (n *NotificationService) Notify(ctx context.Context, event *entities.QueueEvent) error {
	template, ok := smsTemplates[event.EventType]
	if !ok || event.PatientID == "" {
		return nil
	}

	patient, err := n.patients.GetByID(ctx, event.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient %s: %w", event.PatientID, err)
	}
	if strings.TrimSpace(patient.Phone) == "" {
		n.logger.Debug().Str("patient_id", patient.ID).Str("event_type", string(event.EventType)).
			Msg("patient has no phone number, skipping sms")
		return nil
	}

	notifCtx := &NotificationContext{
		PatientName:   patient.FullName,
		PatientPhone:  patient.Phone,
		QueueNumber:   event.QueueNumber,
		Department:    event.Department,
		Reason:        event.DataString("reason"),
		EstimatedWait: dataNumber(event.Data, "estimated_wait"),
	}

	return n.send(ctx, event, n.renderTemplate(template, notifCtx), notifCtx)
}

func (n *NotificationService) send(ctx context.Context, event *entities.QueueEvent, body string, notifCtx *NotificationContext) error {
	now := n.clock.Now()
	notification := &entities.QueueNotification{
		ID:        uuid.New().String(),
		EntryID:   event.EntryID,
		EventType: event.EventType,
		Channel:   entities.ChannelSMS,
		Recipient: notifCtx.PatientPhone,
		Body:      body,
		Status:    entities.NotificationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification record: %w", err)
	}

	result, sendErr := n.sender.Send(ctx, providers.SMSMessage{To: notifCtx.PatientPhone, Body: body})

	now = n.clock.Now()
	if sendErr != nil {
		errMsg := sendErr.Error()
		notification.Status = entities.NotificationStatusFailed
		notification.FailedAt = &now
		notification.ErrorMessage = &errMsg
	} else {
		messageID := result.MessageID
		notification.Status = entities.NotificationStatusSent
		notification.MessageID = &messageID
		notification.SentAt = &now
	}
	notification.UpdatedAt = now
	n.metrics.RecordNotification(ctx, string(event.EventType), string(notification.Status))

	if err := n.notifications.Update(ctx, notification); err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return sendErr
}

// renderTemplate replaces placeholders in template
func (n *NotificationService) renderTemplate(template string, ctx *NotificationContext) string {
	replacements := []string{
		"{{patient_name}}", ctx.PatientName,
		"{{queue_number}}", ctx.QueueNumber,
		"{{department}}", ctx.Department,
		"{{reason}}", ctx.Reason,
		"{{estimated_wait}}", ctx.EstimatedWait,
	}
	return strings.TrimSpace(strings.NewReplacer(replacements...).Replace(template))
}

// dataNumber reads a numeric payload value, which is an int in process and a
// float64 after a JSON round trip
func dataNumber(data map[string]interface{}, key string) string {
	switch v := data[key].(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.Itoa(int(v))
	case string:
		return v
	}
	return ""
}
