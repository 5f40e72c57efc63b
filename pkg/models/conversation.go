package models

import "time"

// ConversationRecord is one delivered (or attempted) outbound message in an
// organization's conversation history. Recording history is best effort: a
// send that succeeds but fails to record still counts as sent.
type ConversationRecord struct {
	ID                string    `json:"id"`
	OrgID             string    `json:"org_id"`
	ContactID         string    `json:"contact_id"`
	WorkflowID        string    `json:"workflow_id"`
	EnrollmentID      string    `json:"enrollment_id"`
	Channel           Channel   `json:"channel"`
	Direction         string    `json:"direction"`
	Body              string    `json:"body,omitempty"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	SentAt            time.Time `json:"sent_at"`
}

// Conversation record directions.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)
