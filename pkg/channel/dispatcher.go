package channel

import (
	"context"
	"log/slog"
	"time"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/models"
)

// Dispatcher wraps a sender call with delivery lifecycle events. Event
// publishing is best effort: a send that succeeds but fails to publish still
// counts as sent.
type Dispatcher struct {
	registry *Registry
	bus      eventbus.EventBus
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, bus eventbus.EventBus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		bus:      bus,
		logger:   logger.With("module", "channel_dispatcher"),
	}
}

// Registry exposes the underlying sender registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch performs the send and publishes the matching lifecycle event.
func (d *Dispatcher) Dispatch(ctx context.Context, sender Sender, creds *models.ChannelCredentials, contact *models.Contact, step *models.WorkflowStep, enrollment *models.Enrollment) (*Result, error) {
	result, err := sender.Send(ctx, creds, contact, step)
	if err != nil {
		d.publish(ctx, enrollment.ID, &events.MessageFailed{
			BaseEvent: d.baseEvent(events.MessageFailedEvent, enrollment),
			Channel:   step.Channel,
			StepOrder: step.StepOrder,
			Error:     err.Error(),
			Retryable: true,
		})

		return nil, err
	}

	d.publish(ctx, enrollment.ID, &events.MessageSent{
		BaseEvent:         d.baseEvent(events.MessageSentEvent, enrollment),
		Channel:           step.Channel,
		StepOrder:         step.StepOrder,
		Body:              result.Body,
		ProviderMessageID: result.ProviderMessageID,
	})

	return result, nil
}

// PublishCompleted emits the completion event for an enrollment that just
// finished its last step.
func (d *Dispatcher) PublishCompleted(ctx context.Context, enrollment *models.Enrollment, completedAt time.Time) {
	d.publish(ctx, enrollment.ID, &events.EnrollmentCompleted{
		BaseEvent:   d.baseEvent(events.EnrollmentCompletedEvent, enrollment),
		CompletedAt: completedAt,
	})
}

func (d *Dispatcher) baseEvent(eventType events.EventType, enrollment *models.Enrollment) events.BaseEvent {
	return events.BaseEvent{
		ID:           d.bus.GenerateID(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		OrgID:        enrollment.OrgID,
		WorkflowID:   enrollment.WorkflowID,
		EnrollmentID: enrollment.ID,
		ContactID:    enrollment.ContactID,
	}
}

func (d *Dispatcher) publish(ctx context.Context, key string, event eventbus.Event) {
	err := d.bus.Publish(ctx, key, event)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to publish delivery event", "event_type", event.GetType(), "error", err)
	}
}
