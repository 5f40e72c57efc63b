package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/persistence/file"
)

var enrollNow = time.Date(2026, 6, 1, 14, 30, 0, 0, time.UTC)

func seedEnrollmentFixtures(t *testing.T) (*file.Persistence, *models.Workflow) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	workflow := &models.Workflow{
		ID:     "wf-1",
		OrgID:  "org-1",
		Name:   "Onboarding",
		Active: true,
		Steps: []*models.WorkflowStep{
			{
				ID:        "st-1",
				StepOrder: 1,
				DelayDays: 0,
				SendTime:  &models.SendTime{Hour: 9, Minute: 0},
				Channel:   models.ChannelEmail,
				Email:     &models.EmailContent{Subject: "Welcome", Body: "Hi"},
			},
			{
				ID:        "st-2",
				StepOrder: 2,
				DelayDays: 3,
				Channel:   models.ChannelEmail,
				Email:     &models.EmailContent{Subject: "Ping", Body: "Hello"},
			},
		},
	}
	require.NoError(t, store.Workflows().Create(t.Context(), workflow))

	contact := &models.Contact{ID: "contact-1", OrgID: "org-1", Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, store.Contacts().Save(t.Context(), contact))

	return store, workflow
}

func newEnrollmentService(store *file.Persistence) *Enrollment {
	service := NewEnrollment(store)
	service.now = func() time.Time { return enrollNow }

	return service
}

func TestEnroll(t *testing.T) {
	store, _ := seedEnrollmentFixtures(t)
	service := newEnrollmentService(store)

	enrollment, err := service.Enroll(t.Context(), EnrollRequest{
		OrgID:      "org-1",
		WorkflowID: "wf-1",
		ContactID:  "contact-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, 1, enrollment.CurrentStep)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)

	// 14:30 with a 09:00 send time: today's slot passed, fire tomorrow.
	assert.Equal(t, time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC), enrollment.NextSendAt)
}

func TestEnrollRejectsInactiveWorkflow(t *testing.T) {
	store, workflow := seedEnrollmentFixtures(t)
	require.NoError(t, store.Workflows().SetActive(t.Context(), workflow.ID, false))

	service := newEnrollmentService(store)

	_, err := service.Enroll(t.Context(), EnrollRequest{OrgID: "org-1", WorkflowID: "wf-1", ContactID: "contact-1"})
	assert.ErrorIs(t, err, ErrWorkflowInactive)
}

func TestEnrollUnknownContact(t *testing.T) {
	store, _ := seedEnrollmentFixtures(t)
	service := newEnrollmentService(store)

	_, err := service.Enroll(t.Context(), EnrollRequest{OrgID: "org-1", WorkflowID: "wf-1", ContactID: "ghost"})
	assert.ErrorIs(t, err, persistence.ErrContactNotFound)
}

func TestResume(t *testing.T) {
	store, _ := seedEnrollmentFixtures(t)
	service := newEnrollmentService(store)

	paused := &models.Enrollment{
		ID:          "enr-1",
		OrgID:       "org-1",
		WorkflowID:  "wf-1",
		ContactID:   "contact-1",
		CurrentStep: 2,
		Status:      models.EnrollmentStatusPaused,
		NextSendAt:  enrollNow.AddDate(0, 0, -30),
		LastError:   "workflow deactivated",
	}
	require.NoError(t, store.Enrollments().Create(t.Context(), paused))

	resumed, err := service.Resume(t.Context(), "enr-1")
	require.NoError(t, err)

	assert.Equal(t, models.EnrollmentStatusActive, resumed.Status)
	assert.Equal(t, 2, resumed.CurrentStep)
	assert.Equal(t, enrollNow.AddDate(0, 0, 3), resumed.NextSendAt, "fire time is recomputed from now, not from the pause")
	assert.Empty(t, resumed.LastError)
}

func TestResumeRejectsActiveEnrollment(t *testing.T) {
	store, _ := seedEnrollmentFixtures(t)
	service := newEnrollmentService(store)

	active := &models.Enrollment{
		ID:          "enr-active",
		OrgID:       "org-1",
		WorkflowID:  "wf-1",
		ContactID:   "contact-1",
		CurrentStep: 1,
		Status:      models.EnrollmentStatusActive,
	}
	require.NoError(t, store.Enrollments().Create(t.Context(), active))

	_, err := service.Resume(t.Context(), "enr-active")
	assert.ErrorIs(t, err, ErrEnrollmentNotPaused)
}

func TestResumeRejectsInactiveWorkflow(t *testing.T) {
	store, workflow := seedEnrollmentFixtures(t)
	service := newEnrollmentService(store)

	paused := &models.Enrollment{
		ID:          "enr-1",
		OrgID:       "org-1",
		WorkflowID:  "wf-1",
		ContactID:   "contact-1",
		CurrentStep: 1,
		Status:      models.EnrollmentStatusPaused,
	}
	require.NoError(t, store.Enrollments().Create(t.Context(), paused))
	require.NoError(t, store.Workflows().SetActive(t.Context(), workflow.ID, false))

	_, err := service.Resume(t.Context(), "enr-1")
	assert.ErrorIs(t, err, ErrWorkflowInactive)
}

func TestEnrollRejectsDuplicate(t *testing.T) {
	store, _ := seedEnrollmentFixtures(t)
	service := newEnrollmentService(store)

	req := EnrollRequest{OrgID: "org-1", WorkflowID: "wf-1", ContactID: "contact-1"}

	_, err := service.Enroll(t.Context(), req)
	require.NoError(t, err)

	_, err = service.Enroll(t.Context(), req)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	assert.True(t, IsConflictError(err))
}
