package engine

import (
	"fmt"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

// Engine tunables. Compiled-in policy, named for future tuning.
const (
	// DefaultBatchSize caps how many due enrollments one run selects.
	DefaultBatchSize = 50

	// MaxRetries bounds recoverable send failures per step; the attempt after
	// the last retry fails the enrollment regardless of error type.
	MaxRetries = 3
)

// RetryBackoff is the escalating delay schedule: attempt N waits
// RetryBackoff[N-1], saturating at the last entry.
var RetryBackoff = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
}

func backoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}

	if idx >= len(RetryBackoff) {
		idx = len(RetryBackoff) - 1
	}

	return RetryBackoff[idx]
}

// SendOutcome is the normalized result of one dispatch attempt.
type SendOutcome struct {
	Delivered bool
	Error     string // provider error when not delivered
}

// Transition is the pure state-transition function: given the enrollment as
// read at selection time, its workflow and the dispatch outcome, it produces
// the patch to persist. It performs no I/O so the state machine is testable
// without a store.
func Transition(enrollment *models.Enrollment, workflow *models.Workflow, outcome SendOutcome, now time.Time) (models.EnrollmentPatch, OutcomeTag, string) {
	if !outcome.Delivered {
		return retryOrFail(enrollment, outcome.Error, now)
	}

	next := workflow.Step(enrollment.CurrentStep + 1)
	if next == nil {
		completedAt := now.UTC()

		patch := keepPatch(enrollment)
		patch.Status = models.EnrollmentStatusCompleted
		patch.RetryCount = 0
		patch.LastError = ""
		patch.CompletedAt = &completedAt

		return patch, OutcomeCompleted, fmt.Sprintf("workflow completed at step %d", enrollment.CurrentStep)
	}

	patch := models.EnrollmentPatch{
		Status:      models.EnrollmentStatusActive,
		CurrentStep: next.StepOrder,
		NextSendAt:  FireTime(next, now),
		RetryCount:  0,
		LastError:   "",
	}

	return patch, OutcomeAdvanced, fmt.Sprintf("advanced to step %d", next.StepOrder)
}

func retryOrFail(enrollment *models.Enrollment, sendErr string, now time.Time) (models.EnrollmentPatch, OutcomeTag, string) {
	attempt := enrollment.RetryCount + 1

	patch := keepPatch(enrollment)
	patch.RetryCount = attempt
	patch.LastError = sendErr

	if attempt > MaxRetries {
		patch.Status = models.EnrollmentStatusFailed

		return patch, OutcomeFailed, fmt.Sprintf("retries exhausted: %s", sendErr)
	}

	backoff := backoffFor(attempt)
	patch.NextSendAt = now.UTC().Add(backoff)

	return patch, OutcomeRetried, fmt.Sprintf("send failed (attempt %d/%d), retrying in %s: %s", attempt, MaxRetries+1, backoff, sendErr)
}

// FailPatch marks an enrollment failed for an unrecoverable data error.
// RetryCount and CurrentStep stay untouched: retrying cannot fix missing
// steps, unapproved content or missing addresses.
func FailPatch(enrollment *models.Enrollment, reason string) models.EnrollmentPatch {
	patch := keepPatch(enrollment)
	patch.Status = models.EnrollmentStatusFailed
	patch.LastError = reason

	return patch
}

// PausePatch halts an enrollment because its workflow was deactivated. The
// halt is recoverable by an external resume, no retry is scheduled.
func PausePatch(enrollment *models.Enrollment, reason string) models.EnrollmentPatch {
	patch := keepPatch(enrollment)
	patch.Status = models.EnrollmentStatusPaused
	patch.LastError = reason

	return patch
}

// keepPatch copies the enrollment's current mutable fields as a baseline.
func keepPatch(enrollment *models.Enrollment) models.EnrollmentPatch {
	return models.EnrollmentPatch{
		Status:      enrollment.Status,
		CurrentStep: enrollment.CurrentStep,
		NextSendAt:  enrollment.NextSendAt,
		RetryCount:  enrollment.RetryCount,
		LastError:   enrollment.LastError,
		CompletedAt: enrollment.CompletedAt,
	}
}
