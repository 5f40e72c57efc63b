package file

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root string
	mu   sync.Mutex
}

func (wr *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	return writeRecord(wr.root, "workflows", workflow.ID, workflow)
}

func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	workflow := &models.Workflow{}

	err := readRecord(wr.root, "workflows", id, workflow, persistence.ErrWorkflowNotFound)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (wr *WorkflowRepository) List(ctx context.Context, orgID string) ([]*models.Workflow, error) {
	ids, err := listIDs(wr.root, "workflows")
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		if orgID != "" && workflow.OrgID != orgID {
			continue
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (wr *WorkflowRepository) SetActive(ctx context.Context, id string, active bool) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	workflow.Active = active
	workflow.UpdatedAt = time.Now().UTC()

	return writeRecord(wr.root, "workflows", workflow.ID, workflow)
}
