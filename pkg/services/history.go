package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// History consumes delivery events and appends them to the organization's
// conversation history. It runs off the bus so a history write failure can
// never affect the send that produced it.
type History struct {
	persistence persistence.Persistence
	bus         eventbus.EventBus
	logger      *slog.Logger
}

// NewHistory creates a new history recorder.
func NewHistory(p persistence.Persistence, bus eventbus.EventBus, logger *slog.Logger) *History {
	return &History{
		persistence: p,
		bus:         bus,
		logger:      logger.With("module", "history"),
	}
}

// Start registers the recorder on the bus and begins consuming.
func (h *History) Start(ctx context.Context) error {
	h.bus.Handle(events.MessageSentEvent, h.recordSent)

	return h.bus.Subscribe(ctx)
}

func (h *History) recordSent(ctx context.Context, event any) error {
	sent, ok := event.(*events.MessageSent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T for %s", event, events.MessageSentEvent)
	}

	record := &models.ConversationRecord{
		ID:                uuid.New().String(),
		OrgID:             sent.OrgID,
		ContactID:         sent.ContactID,
		WorkflowID:        sent.WorkflowID,
		EnrollmentID:      sent.EnrollmentID,
		Channel:           sent.Channel,
		Direction:         models.DirectionOutbound,
		Body:              sent.Body,
		ProviderMessageID: sent.ProviderMessageID,
		SentAt:            sent.Timestamp,
	}

	err := h.persistence.Conversations().Append(ctx, record)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to record conversation history",
			"enrollment_id", sent.EnrollmentID,
			"contact_id", sent.ContactID,
			"error", err,
		)

		return err
	}

	return nil
}
