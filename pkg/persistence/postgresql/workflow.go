package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Create inserts a workflow and its steps in one transaction.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, org_id, name, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, workflow.ID, workflow.OrgID, workflow.Name, workflow.Description, workflow.Active, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	for _, step := range workflow.Steps {
		err = r.insertStep(ctx, tx, workflow.ID, step)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) insertStep(ctx context.Context, tx *sql.Tx, workflowID string, step *models.WorkflowStep) error {
	if step.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate step ID: %w", err)
		}

		step.ID = id.String()
	}

	step.WorkflowID = workflowID

	sendTime, err := marshalNullable(step.SendTime)
	if err != nil {
		return fmt.Errorf("failed to marshal send_time: %w", err)
	}

	template, err := marshalNullable(step.Template)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	email, err := marshalNullable(step.Email)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	mappings, err := json.Marshal(step.Mappings)
	if err != nil {
		return fmt.Errorf("failed to marshal mappings: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_steps (id, workflow_id, step_order, delay_days, send_time, channel, template, email, mappings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, step.ID, step.WorkflowID, step.StepOrder, step.DelayDays, sendTime, step.Channel, template, email, mappings)
	if err != nil {
		return fmt.Errorf("failed to insert workflow step: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , org_id
		  , name
		  , description
		  , active
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	workflow := &models.Workflow{}

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.OrgID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Active,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	err = r.loadSteps(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *WorkflowRepository) List(ctx context.Context, orgID string) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , org_id
		  , name
		  , description
		  , active
		  , created_at
		  , updated_at
		FROM workflows
		WHERE ($1 = '' OR org_id = $1)
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func(ctx context.Context, r *WorkflowRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow := &models.Workflow{}

		err = rows.Scan(
			&workflow.ID,
			&workflow.OrgID,
			&workflow.Name,
			&workflow.Description,
			&workflow.Active,
			&workflow.CreatedAt,
			&workflow.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		err = r.loadSteps(ctx, workflow)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflows SET active = $2, updated_at = NOW() WHERE id = $1
	`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update workflow activation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflow *models.Workflow) error {
	query := `
		SELECT
			id
		  , workflow_id
		  , step_order
		  , delay_days
		  , send_time
		  , channel
		  , template
		  , email
		  , mappings
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY step_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer func(ctx context.Context, r *WorkflowRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	steps := make([]*models.WorkflowStep, 0)

	for rows.Next() {
		step := &models.WorkflowStep{}

		var sendTime, template, email, mappings []byte

		err = rows.Scan(
			&step.ID,
			&step.WorkflowID,
			&step.StepOrder,
			&step.DelayDays,
			&sendTime,
			&step.Channel,
			&template,
			&email,
			&mappings,
		)
		if err != nil {
			return fmt.Errorf("failed to scan workflow step: %w", err)
		}

		err = unmarshalNullable(sendTime, &step.SendTime)
		if err != nil {
			return fmt.Errorf("failed to unmarshal send_time: %w", err)
		}

		err = unmarshalNullable(template, &step.Template)
		if err != nil {
			return fmt.Errorf("failed to unmarshal template: %w", err)
		}

		err = unmarshalNullable(email, &step.Email)
		if err != nil {
			return fmt.Errorf("failed to unmarshal email: %w", err)
		}

		err = json.Unmarshal(mappings, &step.Mappings)
		if err != nil {
			return fmt.Errorf("failed to unmarshal mappings: %w", err)
		}

		steps = append(steps, step)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating workflow steps: %w", err)
	}

	workflow.Steps = steps

	return nil
}

// marshalNullable marshals v, returning a NULL-able nil for nil pointers.
func marshalNullable(v any) ([]byte, error) {
	switch value := v.(type) {
	case *models.SendTime:
		if value == nil {
			return nil, nil
		}
	case *models.WhatsAppTemplate:
		if value == nil {
			return nil, nil
		}
	case *models.EmailContent:
		if value == nil {
			return nil, nil
		}
	}

	return json.Marshal(v)
}

func unmarshalNullable(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, target)
}
