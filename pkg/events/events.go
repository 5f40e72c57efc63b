// Package events defines event types for delivery lifecycle notifications.
package events

import (
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

type EventType string

// Topic is the bus topic carrying delivery lifecycle events.
const Topic = "cadence.deliveries"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	MessageSentEvent         EventType = "message.sent"
	MessageFailedEvent       EventType = "message.failed"
	EnrollmentCompletedEvent EventType = "enrollment.completed"
)

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	OrgID        string    `json:"org_id"`
	WorkflowID   string    `json:"workflow_id"`
	EnrollmentID string    `json:"enrollment_id"`
	ContactID    string    `json:"contact_id"`
}

func (e BaseEvent) GetType() EventType {
	return e.Type
}

// MessageSent is published after a successful channel send. The history
// recorder turns it into a conversation record.
type MessageSent struct {
	BaseEvent

	Channel           models.Channel `json:"channel"`
	StepOrder         int            `json:"step_order"`
	Body              string         `json:"body,omitempty"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
}

// MessageFailed is published after a failed send attempt.
type MessageFailed struct {
	BaseEvent

	Channel   models.Channel `json:"channel"`
	StepOrder int            `json:"step_order"`
	Error     string         `json:"error"`
	Retryable bool           `json:"retryable"`
}

// EnrollmentCompleted is published when a contact finishes the last step of
// a workflow.
type EnrollmentCompleted struct {
	BaseEvent

	CompletedAt time.Time `json:"completed_at"`
}
