// Package channel defines the closed set of messaging transports and the
// sender contract the engine dispatches through. Each channel owns its
// content shape, required contact address and credential layout; precondition
// checks and sending live together per channel so adding a transport is
// additive.
package channel

import (
	"context"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

// SendTimeout bounds one provider call. The engine treats a timeout as a
// normal send failure subject to the retry policy.
const SendTimeout = 30 * time.Second

// Result is the normalized outcome of a successful send.
type Result struct {
	ProviderMessageID string
	Body              string
}

// Sender delivers personalized content to a contact over one channel.
// CheckContent failures are unrecoverable data errors; CheckCredentials and
// Send failures are recoverable and subject to retry. Send must never leak
// transport errors as panics; all outcomes are normalized results.
type Sender interface {
	Channel() models.Channel

	// Address returns the contact's address for this channel, or "" when the
	// contact is unreachable on it.
	Address(contact *models.Contact) string

	// CheckContent verifies the step's channel-specific content is fully
	// specified and sendable right now (e.g. template approved).
	CheckContent(step *models.WorkflowStep) error

	// CheckCredentials verifies the organization's credentials are usable
	// before a send burns a retry on a configuration gap.
	CheckCredentials(creds *models.ChannelCredentials) error

	Send(ctx context.Context, creds *models.ChannelCredentials, contact *models.Contact, step *models.WorkflowStep) (*Result, error)

	// ContentSchema returns the JSON schema a step's content must satisfy at
	// creation time. The engine re-checks per attempt regardless, because
	// upstream content can change after creation.
	ContentSchema() string
}
