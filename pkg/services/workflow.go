package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/channel"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

type Workflow struct {
	persistence persistence.Persistence
	registry    *channel.Registry
	validator   *validator.Validate
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence, registry *channel.Registry) *Workflow {
	return &Workflow{
		persistence: p,
		registry:    registry,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates and stores a new workflow. Workflows are created inactive;
// activation is a separate, explicit operation.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	err := w.validate(workflow)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.Active = false
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	for _, step := range workflow.Steps {
		step.ID = uuid.New().String()
		step.WorkflowID = workflow.ID
	}

	err = w.persistence.Workflows().Create(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.Workflows().GetByID(ctx, id)
}

// List retrieves all workflows of an organization.
func (w *Workflow) List(ctx context.Context, orgID string) ([]*models.Workflow, error) {
	return w.persistence.Workflows().List(ctx, orgID)
}

// Activate makes a workflow eligible for enrollment and sending. Paused
// enrollments are not resumed automatically; resume is per enrollment.
func (w *Workflow) Activate(ctx context.Context, id string) error {
	_, err := w.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return err
	}

	return w.persistence.Workflows().SetActive(ctx, id, true)
}

// Deactivate turns a workflow off and pauses every in-flight enrollment so
// the next run does not pick them up. Returns how many enrollments were
// paused.
func (w *Workflow) Deactivate(ctx context.Context, id string) (int, error) {
	workflow, err := w.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return 0, err
	}

	err = w.persistence.Workflows().SetActive(ctx, id, false)
	if err != nil {
		return 0, err
	}

	paused, err := w.persistence.Enrollments().PauseByWorkflow(ctx, id, fmt.Sprintf("workflow %q deactivated", workflow.Name))
	if err != nil {
		return 0, fmt.Errorf("failed to pause enrollments: %w", err)
	}

	return paused, nil
}

func (w *Workflow) validate(workflow *models.Workflow) error {
	err := w.validator.Struct(workflow)
	if err != nil {
		return NewValidationError("Workflow.Create", "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	// Advancement assumes step orders form a dense 1-based sequence.
	seen := make(map[int]bool, len(workflow.Steps))
	for _, step := range workflow.Steps {
		seen[step.StepOrder] = true
	}

	for order := 1; order <= len(workflow.Steps); order++ {
		if !seen[order] {
			return NewValidationError(
				"Workflow.Create",
				"STEP_ORDER_GAP",
				fmt.Sprintf("missing step order %d", order),
				ErrStepOrderNotDense,
			)
		}
	}

	for _, step := range workflow.Steps {
		err := w.registry.ValidateContent(step)
		if err != nil {
			return NewValidationError(
				"Workflow.Create",
				"INVALID_STEP_CONTENT",
				fmt.Sprintf("step %d: %v", step.StepOrder, err),
				ErrInvalidContent,
			)
		}
	}

	return nil
}
