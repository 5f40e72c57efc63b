package channel

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/cadencehq/cadence/pkg/models"
)

// Registry holds the sender for each channel along with its compiled content
// schema.
type Registry struct {
	logger  *slog.Logger
	senders map[models.Channel]Sender
	schemas map[models.Channel]*gojsonschema.Schema
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger,
		senders: make(map[models.Channel]Sender),
		schemas: make(map[models.Channel]*gojsonschema.Schema),
	}
}

// Register adds a sender and compiles its content schema.
func (r *Registry) Register(sender Sender) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(sender.ContentSchema()))
	if err != nil {
		return fmt.Errorf("failed to compile content schema for channel %s: %w", sender.Channel(), err)
	}

	r.senders[sender.Channel()] = sender
	r.schemas[sender.Channel()] = schema

	return nil
}

// Sender returns the sender registered for the channel.
func (r *Registry) Sender(channel models.Channel) (Sender, error) {
	sender, ok := r.senders[channel]
	if !ok {
		return nil, fmt.Errorf("no sender registered for channel %q", channel)
	}

	return sender, nil
}

// ValidateContent checks a step's content against its channel's schema. Used
// at workflow creation; per-attempt readiness is the sender's CheckContent.
func (r *Registry) ValidateContent(step *models.WorkflowStep) error {
	schema, ok := r.schemas[step.Channel]
	if !ok {
		return fmt.Errorf("no sender registered for channel %q", step.Channel)
	}

	document, err := json.Marshal(step)
	if err != nil {
		return fmt.Errorf("failed to marshal step for validation: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("failed to validate step content: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("step %d content invalid for channel %s: %s", step.StepOrder, step.Channel, strings.Join(details, "; "))
	}

	return nil
}
