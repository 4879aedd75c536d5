package providers

import (
	"context"

	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to queue events
type EventBus interface {
	// Publish publishes an event to all subscribers of channel
	Publish(ctx context.Context, channel string, event *entities.QueueEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.QueueEvent, error)

	// Unsubscribe drops every subscriber of a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for queue topics
const (
	// EventChannelQueueUpdates carries every queue event
	EventChannelQueueUpdates = "queue:updates"

	// EventChannelDepartmentPrefix is the prefix for department-scoped channels
	EventChannelDepartmentPrefix = "department:"

	// EventChannelPatientPrefix is the prefix for patient-scoped channels
	EventChannelPatientPrefix = "patient:"
)

// GetDepartmentChannel returns the channel name for a department
func GetDepartmentChannel(department string) string {
	return EventChannelDepartmentPrefix + department
}

// GetPatientChannel returns the channel name for a patient
func GetPatientChannel(patientID string) string {
	return EventChannelPatientPrefix + patientID
}

// ChannelsFor returns every channel an event is fanned out to
func ChannelsFor(event *entities.QueueEvent) []string {
	channels := []string{EventChannelQueueUpdates}
	if event.Department != "" {
		channels = append(channels, GetDepartmentChannel(event.Department))
	}
	if event.PatientID != "" {
		channels = append(channels, GetPatientChannel(event.PatientID))
	}
	return channels
}
