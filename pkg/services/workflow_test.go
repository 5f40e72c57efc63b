package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/pkg/channel"
	"github.com/cadencehq/cadence/pkg/channel/email"
	"github.com/cadencehq/cadence/pkg/channel/whatsapp"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence/file"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *channel.Registry {
	t.Helper()

	logger := testLogger()

	registry := channel.NewRegistry(logger)
	require.NoError(t, registry.Register(email.NewSender(logger)))
	require.NoError(t, registry.Register(whatsapp.NewSender(logger)))

	return registry
}

func validWorkflow() *models.Workflow {
	return &models.Workflow{
		OrgID: "org-1",
		Name:  "Onboarding",
		Steps: []*models.WorkflowStep{
			{
				StepOrder: 1,
				DelayDays: 0,
				Channel:   models.ChannelEmail,
				Email:     &models.EmailContent{Subject: "Welcome", Body: "Hi {{name}}"},
			},
			{
				StepOrder: 2,
				DelayDays: 3,
				Channel:   models.ChannelWhatsApp,
				Template:  &models.WhatsAppTemplate{Name: "followup", Language: "en", Status: models.TemplateStatusApproved},
			},
		},
	}
}

func TestWorkflowCreate(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	service := NewWorkflow(store, testRegistry(t))

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Active, "workflows are created inactive")
	assert.False(t, created.CreatedAt.IsZero())

	for _, step := range created.Steps {
		assert.NotEmpty(t, step.ID)
		assert.Equal(t, created.ID, step.WorkflowID)
	}

	stored, err := store.Workflows().GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Steps, 2)
}

func TestWorkflowCreateRejectsMissingName(t *testing.T) {
	service := NewWorkflow(file.NewPersistence(t.TempDir()), testRegistry(t))

	workflow := validWorkflow()
	workflow.Name = ""

	_, err := service.Create(t.Context(), workflow)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestWorkflowCreateRejectsStepOrderGap(t *testing.T) {
	service := NewWorkflow(file.NewPersistence(t.TempDir()), testRegistry(t))

	workflow := validWorkflow()
	workflow.Steps[1].StepOrder = 3

	_, err := service.Create(t.Context(), workflow)
	assert.ErrorIs(t, err, ErrStepOrderNotDense)
}

func TestWorkflowCreateRejectsContentSchemaViolation(t *testing.T) {
	service := NewWorkflow(file.NewPersistence(t.TempDir()), testRegistry(t))

	workflow := validWorkflow()
	workflow.Steps[0].Email = nil

	_, err := service.Create(t.Context(), workflow)
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestWorkflowActivateDeactivate(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	service := NewWorkflow(store, testRegistry(t))

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	require.NoError(t, service.Activate(t.Context(), created.ID))

	stored, err := store.Workflows().GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)

	// Two in-flight enrollments pause with the workflow.
	for _, id := range []string{"enr-1", "enr-2"} {
		enrollment := &models.Enrollment{
			ID:          id,
			OrgID:       "org-1",
			WorkflowID:  created.ID,
			ContactID:   "contact-" + id,
			CurrentStep: 1,
			Status:      models.EnrollmentStatusActive,
		}
		require.NoError(t, store.Enrollments().Create(t.Context(), enrollment))
	}

	paused, err := service.Deactivate(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, paused)

	enrollment, err := store.Enrollments().GetByID(t.Context(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPaused, enrollment.Status)
}

func TestWorkflowActivateUnknownID(t *testing.T) {
	service := NewWorkflow(file.NewPersistence(t.TempDir()), testRegistry(t))

	err := service.Activate(t.Context(), "nope")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflowHealthCheck(t *testing.T) {
	service := NewWorkflow(file.NewPersistence(t.TempDir()), testRegistry(t))

	message, healthy := service.HealthCheck(context.Background())
	assert.True(t, healthy)
	assert.NotEmpty(t, message)
}
