package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/engine"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// ErrEnrollmentNotFound is returned when an enrollment is not found.
var ErrEnrollmentNotFound = persistence.ErrEnrollmentNotFound

type Enrollment struct {
	persistence persistence.Persistence
	now         func() time.Time
}

// NewEnrollment creates a new enrollment service.
func NewEnrollment(p persistence.Persistence) *Enrollment {
	return &Enrollment{
		persistence: p,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// EnrollRequest starts a contact on a workflow.
type EnrollRequest struct {
	OrgID      string `validate:"required"`
	WorkflowID string `validate:"required"`
	ContactID  string `validate:"required"`
}

// Enroll creates a new active enrollment at step 1, scheduled by the first
// step's delay and send time.
func (e *Enrollment) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	workflow, err := e.persistence.Workflows().GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.Active {
		return nil, ErrWorkflowInactive
	}

	first := workflow.Step(1)
	if first == nil {
		return nil, NewValidationError("Enrollment.Enroll", "EMPTY_WORKFLOW", "workflow has no steps", ErrInvalidRequest)
	}

	_, err = e.persistence.Contacts().GetByID(ctx, req.ContactID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	enrollment := &models.Enrollment{
		ID:          uuid.New().String(),
		OrgID:       req.OrgID,
		WorkflowID:  req.WorkflowID,
		ContactID:   req.ContactID,
		CurrentStep: 1,
		Status:      models.EnrollmentStatusActive,
		NextSendAt:  engine.FireTime(first, now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = e.persistence.Enrollments().Create(ctx, enrollment)
	if err != nil {
		if errors.Is(err, persistence.ErrEnrollmentExists) {
			return nil, ErrAlreadyEnrolled
		}

		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	return enrollment, nil
}

// FetchByID retrieves an enrollment by its ID.
func (e *Enrollment) FetchByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return e.persistence.Enrollments().GetByID(ctx, id)
}

// Resume reactivates a paused enrollment at its current step. The fire time
// is recomputed from now, not from when the enrollment was paused, so a long
// pause does not produce an immediately overdue send at an odd hour.
func (e *Enrollment) Resume(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := e.persistence.Enrollments().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if enrollment.Status != models.EnrollmentStatusPaused {
		return nil, ErrEnrollmentNotPaused
	}

	workflow, err := e.persistence.Workflows().GetByID(ctx, enrollment.WorkflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.Active {
		return nil, ErrWorkflowInactive
	}

	step := workflow.Step(enrollment.CurrentStep)
	if step == nil {
		return nil, NewValidationError(
			"Enrollment.Resume",
			"MISSING_STEP",
			fmt.Sprintf("step %d not found in workflow", enrollment.CurrentStep),
			ErrInvalidRequest,
		)
	}

	patch := models.EnrollmentPatch{
		Status:      models.EnrollmentStatusActive,
		CurrentStep: enrollment.CurrentStep,
		NextSendAt:  engine.FireTime(step, e.now()),
		RetryCount:  enrollment.RetryCount,
	}

	err = e.persistence.Enrollments().Apply(ctx, id, enrollment.CurrentStep, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to resume enrollment: %w", err)
	}

	return e.persistence.Enrollments().GetByID(ctx, id)
}
