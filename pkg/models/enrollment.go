package models

import "time"

// EnrollmentStatus represents the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"    // Eligible for due-selection
	EnrollmentStatusPaused    EnrollmentStatus = "paused"    // Workflow deactivated, needs external resume
	EnrollmentStatusCompleted EnrollmentStatus = "completed" // Last step sent successfully
	EnrollmentStatusFailed    EnrollmentStatus = "failed"    // Retries exhausted or unrecoverable data error
)

// Terminal reports whether the status can never transition again.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusFailed
}

// Enrollment is one contact's progress through one workflow. NextSendAt is
// the single scheduling key: only active enrollments with NextSendAt in the
// past are selected for processing. Rows are never deleted by the engine.
type Enrollment struct {
	ID          string           `json:"id"`
	OrgID       string           `json:"org_id"      validate:"required"`
	WorkflowID  string           `json:"workflow_id" validate:"required"`
	ContactID   string           `json:"contact_id"  validate:"required"`
	CurrentStep int              `json:"current_step"`
	Status      EnrollmentStatus `json:"status"`
	NextSendAt  time.Time        `json:"next_send_at"`
	RetryCount  int              `json:"retry_count"`
	LastError   string           `json:"last_error,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// EnrollmentPatch is the full set of mutable scheduling/state fields, written
// back as one unit so a transition is never partially visible. The store
// applies a patch only when the row's current_step still matches the value
// read at selection time, which keeps advancement monotonic under
// overlapping runs.
type EnrollmentPatch struct {
	Status      EnrollmentStatus `json:"status"`
	CurrentStep int              `json:"current_step"`
	NextSendAt  time.Time        `json:"next_send_at"`
	RetryCount  int              `json:"retry_count"`
	LastError   string           `json:"last_error"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}
