package file_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/persistence/file"
)

var baseTime = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func seedEnrollment(t *testing.T, store *file.Persistence, id string, status models.EnrollmentStatus, nextSendAt time.Time) {
	t.Helper()

	enrollment := &models.Enrollment{
		ID:          id,
		OrgID:       "org-1",
		WorkflowID:  "wf-1",
		ContactID:   "contact-" + id,
		CurrentStep: 1,
		Status:      status,
		NextSendAt:  nextSendAt,
	}
	require.NoError(t, store.Enrollments().Create(t.Context(), enrollment))
}

func TestDueSelectsOldestFirst(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	seedEnrollment(t, store, "late", models.EnrollmentStatusActive, baseTime.Add(-time.Minute))
	seedEnrollment(t, store, "early", models.EnrollmentStatusActive, baseTime.Add(-time.Hour))
	seedEnrollment(t, store, "future", models.EnrollmentStatusActive, baseTime.Add(time.Hour))
	seedEnrollment(t, store, "paused", models.EnrollmentStatusPaused, baseTime.Add(-time.Hour))
	seedEnrollment(t, store, "completed", models.EnrollmentStatusCompleted, baseTime.Add(-time.Hour))

	due, err := store.Enrollments().Due(t.Context(), baseTime, 10)
	require.NoError(t, err)

	require.Len(t, due, 2)
	assert.Equal(t, "early", due[0].ID)
	assert.Equal(t, "late", due[1].ID)
}

func TestDueExactBoundaryIsDue(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	seedEnrollment(t, store, "exact", models.EnrollmentStatusActive, baseTime)

	due, err := store.Enrollments().Due(t.Context(), baseTime, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestDueHonorsLimit(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	for i := range 5 {
		seedEnrollment(t, store, string(rune('a'+i)), models.EnrollmentStatusActive, baseTime.Add(-time.Duration(i)*time.Minute))
	}

	due, err := store.Enrollments().Due(t.Context(), baseTime, 3)
	require.NoError(t, err)
	assert.Len(t, due, 3)
}

func TestDueEmptyStore(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	due, err := store.Enrollments().Due(t.Context(), baseTime, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestApplyGuardsOnCurrentStep(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	seedEnrollment(t, store, "enr-1", models.EnrollmentStatusActive, baseTime)

	patch := models.EnrollmentPatch{
		Status:      models.EnrollmentStatusActive,
		CurrentStep: 2,
		NextSendAt:  baseTime.AddDate(0, 0, 1),
	}
	require.NoError(t, store.Enrollments().Apply(t.Context(), "enr-1", 1, patch))

	// A second apply carrying the stale expected step must not win.
	stale := models.EnrollmentPatch{
		Status:      models.EnrollmentStatusFailed,
		CurrentStep: 1,
		LastError:   "stale write",
	}
	err := store.Enrollments().Apply(t.Context(), "enr-1", 1, stale)
	assert.ErrorIs(t, err, persistence.ErrEnrollmentSuperseded)

	stored, err := store.Enrollments().GetByID(t.Context(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentStep)
	assert.Equal(t, models.EnrollmentStatusActive, stored.Status)
	assert.Empty(t, stored.LastError)
}

func TestApplyUnknownEnrollment(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	err := store.Enrollments().Apply(t.Context(), "missing", 1, models.EnrollmentPatch{})
	assert.ErrorIs(t, err, persistence.ErrEnrollmentNotFound)
}

func TestPauseByWorkflow(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	seedEnrollment(t, store, "a", models.EnrollmentStatusActive, baseTime)
	seedEnrollment(t, store, "b", models.EnrollmentStatusActive, baseTime)
	seedEnrollment(t, store, "done", models.EnrollmentStatusCompleted, baseTime)

	other := &models.Enrollment{
		ID:          "other-wf",
		OrgID:       "org-1",
		WorkflowID:  "wf-2",
		ContactID:   "contact-x",
		CurrentStep: 1,
		Status:      models.EnrollmentStatusActive,
	}
	require.NoError(t, store.Enrollments().Create(t.Context(), other))

	paused, err := store.Enrollments().PauseByWorkflow(t.Context(), "wf-1", "workflow deactivated")
	require.NoError(t, err)
	assert.Equal(t, 2, paused)

	for _, id := range []string{"a", "b"} {
		stored, err := store.Enrollments().GetByID(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, models.EnrollmentStatusPaused, stored.Status)
		assert.Equal(t, "workflow deactivated", stored.LastError)
	}

	// Terminal and foreign enrollments stay untouched.
	done, err := store.Enrollments().GetByID(t.Context(), "done")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, done.Status)

	foreign, err := store.Enrollments().GetByID(t.Context(), "other-wf")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, foreign.Status)
}

func TestCreateRejectsDuplicateWorkflowContactPair(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	seedEnrollment(t, store, "enr-1", models.EnrollmentStatusActive, baseTime)

	dup := &models.Enrollment{
		ID:          "enr-dup",
		OrgID:       "org-1",
		WorkflowID:  "wf-1",
		ContactID:   "contact-enr-1",
		CurrentStep: 1,
		Status:      models.EnrollmentStatusActive,
	}
	err := store.Enrollments().Create(t.Context(), dup)
	assert.ErrorIs(t, err, persistence.ErrEnrollmentExists)
}
