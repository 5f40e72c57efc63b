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

// EnrollmentRepository handles enrollment-related file operations. A mutex
// serializes read-modify-write cycles so Apply's current_step guard holds
// within one process.
type EnrollmentRepository struct {
	root string
	mu   sync.Mutex
}

func (er *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	// Same uniqueness the postgres schema enforces on (workflow_id, contact_id).
	existing, err := er.loadAll(ctx)
	if err != nil {
		return err
	}

	for _, other := range existing {
		if other.WorkflowID == enrollment.WorkflowID && other.ContactID == enrollment.ContactID {
			return persistence.ErrEnrollmentExists
		}
	}

	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}

	enrollment.UpdatedAt = now

	return writeRecord(er.root, "enrollments", enrollment.ID, enrollment)
}

func (er *EnrollmentRepository) GetByID(_ context.Context, id string) (*models.Enrollment, error) {
	enrollment := &models.Enrollment{}

	err := readRecord(er.root, "enrollments", id, enrollment, persistence.ErrEnrollmentNotFound)
	if err != nil {
		return nil, err
	}

	return enrollment, nil
}

func (er *EnrollmentRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.Enrollment, error) {
	all, err := er.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	due := make([]*models.Enrollment, 0)

	for _, enrollment := range all {
		if enrollment.Status != models.EnrollmentStatusActive {
			continue
		}

		if enrollment.NextSendAt.After(now) {
			continue
		}

		due = append(due, enrollment)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextSendAt.Before(due[j].NextSendAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (er *EnrollmentRepository) Apply(ctx context.Context, id string, expectedStep int, patch models.EnrollmentPatch) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	enrollment, err := er.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if enrollment.CurrentStep != expectedStep {
		return persistence.ErrEnrollmentSuperseded
	}

	enrollment.Status = patch.Status
	enrollment.CurrentStep = patch.CurrentStep
	enrollment.NextSendAt = patch.NextSendAt
	enrollment.RetryCount = patch.RetryCount
	enrollment.LastError = patch.LastError
	enrollment.CompletedAt = patch.CompletedAt
	enrollment.UpdatedAt = time.Now().UTC()

	return writeRecord(er.root, "enrollments", enrollment.ID, enrollment)
}

func (er *EnrollmentRepository) PauseByWorkflow(ctx context.Context, workflowID, reason string) (int, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	all, err := er.loadAll(ctx)
	if err != nil {
		return 0, err
	}

	paused := 0

	for _, enrollment := range all {
		if enrollment.WorkflowID != workflowID || enrollment.Status != models.EnrollmentStatusActive {
			continue
		}

		enrollment.Status = models.EnrollmentStatusPaused
		enrollment.LastError = reason
		enrollment.UpdatedAt = time.Now().UTC()

		err = writeRecord(er.root, "enrollments", enrollment.ID, enrollment)
		if err != nil {
			return paused, err
		}

		paused++
	}

	return paused, nil
}

func (er *EnrollmentRepository) loadAll(ctx context.Context) ([]*models.Enrollment, error) {
	ids, err := listIDs(er.root, "enrollments")
	if err != nil {
		return nil, err
	}

	enrollments := make([]*models.Enrollment, 0, len(ids))

	for _, id := range ids {
		enrollment, err := er.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load enrollment %s: %w", id, err)
		}

		enrollments = append(enrollments, enrollment)
	}

	return enrollments, nil
}
