package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cadencehq/cadence/pkg/channel"
	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/eventbus/gochannel"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/otelhelper"
	"github.com/cadencehq/cadence/pkg/persistence/file"
)

var runNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeSender is a scriptable channel.Sender for exercising the engine's
// precondition chain and retry policy without a provider.
type fakeSender struct {
	contentErr error
	credsErr   error
	sendErr    error
	noAddress  bool
	onSend     func()
	sends      int
}

func (f *fakeSender) Channel() models.Channel { return models.ChannelEmail }

func (f *fakeSender) Address(contact *models.Contact) string {
	if f.noAddress {
		return ""
	}

	return contact.Email
}

func (f *fakeSender) CheckContent(_ *models.WorkflowStep) error { return f.contentErr }

func (f *fakeSender) CheckCredentials(_ *models.ChannelCredentials) error { return f.credsErr }

func (f *fakeSender) Send(_ context.Context, _ *models.ChannelCredentials, _ *models.Contact, _ *models.WorkflowStep) (*channel.Result, error) {
	f.sends++

	if f.onSend != nil {
		f.onSend()
	}

	if f.sendErr != nil {
		return nil, f.sendErr
	}

	return &channel.Result{ProviderMessageID: "msg-1", Body: "hello"}, nil
}

func (f *fakeSender) ContentSchema() string { return `{"type": "object"}` }

type harness struct {
	store  *file.Persistence
	engine *Engine
	sender *fakeSender
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	sender := &fakeSender{}

	registry := channel.NewRegistry(logger)
	require.NoError(t, registry.Register(sender))

	dispatcher := channel.NewDispatcher(registry, eventbus.NewWatermillEventBus(pub, sub), logger)
	store := file.NewPersistence(t.TempDir())

	opts = append([]Option{WithClock(func() time.Time { return runNow })}, opts...)
	eng := New(store, dispatcher, logger, opts...)

	return &harness{store: store, engine: eng, sender: sender}
}

// seed creates an active two-step email workflow, a reachable contact with
// stored credentials, and one enrollment at the given step, due one minute ago.
func (h *harness) seed(t *testing.T, step int) *models.Enrollment {
	t.Helper()

	ctx := context.Background()

	workflow := &models.Workflow{
		ID:     "wf-1",
		OrgID:  "org-1",
		Name:   "Onboarding",
		Active: true,
		Steps: []*models.WorkflowStep{
			{ID: "st-1", WorkflowID: "wf-1", StepOrder: 1, DelayDays: 0, Channel: models.ChannelEmail,
				Email: &models.EmailContent{Subject: "Welcome", Body: "Hi {{name}}"}},
			{ID: "st-2", WorkflowID: "wf-1", StepOrder: 2, DelayDays: 3, Channel: models.ChannelEmail,
				Email: &models.EmailContent{Subject: "Checking in", Body: "Hello again"}},
		},
	}
	require.NoError(t, h.store.Workflows().Create(ctx, workflow))

	contact := &models.Contact{ID: "contact-1", OrgID: "org-1", Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, h.store.Contacts().Save(ctx, contact))

	creds := &models.ChannelCredentials{
		OrgID:   "org-1",
		Channel: models.ChannelEmail,
		Config:  map[string]string{"api_key": "k"},
	}
	require.NoError(t, h.store.Credentials().Save(ctx, creds))

	enrollment := &models.Enrollment{
		ID:          "enr-1",
		OrgID:       "org-1",
		WorkflowID:  "wf-1",
		ContactID:   "contact-1",
		CurrentStep: step,
		Status:      models.EnrollmentStatusActive,
		NextSendAt:  runNow.Add(-time.Minute),
	}
	require.NoError(t, h.store.Enrollments().Create(ctx, enrollment))

	return enrollment
}

func (h *harness) reload(t *testing.T, id string) *models.Enrollment {
	t.Helper()

	enrollment, err := h.store.Enrollments().GetByID(context.Background(), id)
	require.NoError(t, err)

	return enrollment
}

func TestRunIdleWhenNothingDue(t *testing.T) {
	h := newHarness(t)
	enrollment := h.seed(t, 1)

	patch := models.EnrollmentPatch{
		Status:      models.EnrollmentStatusActive,
		CurrentStep: 1,
		NextSendAt:  runNow.Add(time.Hour),
	}
	require.NoError(t, h.store.Enrollments().Apply(context.Background(), enrollment.ID, 1, patch))

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunStatusIdle, summary.Status)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, h.sender.sends)
}

func TestRunAdvancesDueEnrollment(t *testing.T) {
	h := newHarness(t)
	enrollment := h.seed(t, 1)

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunStatusSuccess, summary.Status)
	assert.Equal(t, 1, summary.Sent)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeAdvanced, summary.Results[0].Outcome)

	stored := h.reload(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, stored.Status)
	assert.Equal(t, 2, stored.CurrentStep)
	assert.Equal(t, runNow.AddDate(0, 0, 3), stored.NextSendAt)
	assert.Zero(t, stored.RetryCount)
}

func TestRunCompletesFinalStep(t *testing.T) {
	h := newHarness(t)
	enrollment := h.seed(t, 2)

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunStatusSuccess, summary.Status)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeCompleted, summary.Results[0].Outcome)

	stored := h.reload(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, runNow, *stored.CompletedAt)

	// A completed enrollment is never selected again.
	summary, err = h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunStatusIdle, summary.Status)
}

func TestRunSchedulesRetryOnSendFailure(t *testing.T) {
	h := newHarness(t)
	enrollment := h.seed(t, 1)
	h.sender.sendErr = assert.AnError

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunStatusFailed, summary.Status)
	assert.Equal(t, 1, summary.Retried)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeRetried, summary.Results[0].Outcome)

	stored := h.reload(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, stored.Status)
	assert.Equal(t, 1, stored.CurrentStep)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, runNow.Add(5*time.Minute), stored.NextSendAt)
	assert.NotEmpty(t, stored.LastError)
}

func TestRunFailsEnrollmentWhenRetriesExhausted(t *testing.T) {
	h := newHarness(t)
	enrollment := h.seed(t, 1)
	h.sender.sendErr = assert.AnError

	// Force each retry due immediately so four runs walk the whole schedule.
	for run := range 4 {
		summary, err := h.engine.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, summary.Results, 1, "run %d", run)

		stored := h.reload(t, enrollment.ID)
		if stored.Status == models.EnrollmentStatusFailed {
			break
		}

		patch := models.EnrollmentPatch{
			Status:      stored.Status,
			CurrentStep: stored.CurrentStep,
			NextSendAt:  runNow.Add(-time.Second),
			RetryCount:  stored.RetryCount,
			LastError:   stored.LastError,
		}
		require.NoError(t, h.store.Enrollments().Apply(context.Background(), enrollment.ID, stored.CurrentStep, patch))
	}

	stored := h.reload(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusFailed, stored.Status)
	assert.Equal(t, MaxRetries+1, stored.RetryCount)
	assert.Equal(t, 4, h.sender.sends)
}

func TestRunFailsOnUnapprovedContent(t *testing.T) {
	h := newHarness(t)
	enrollment := h.seed(t, 1)
	h.sender.contentErr = assert.AnError

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeFailed, summary.Results[0].Outcome)
	assert.Zero(t, h.sender.sends, "content errors fail before the provider call")

	stored := h.reload(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusFailed, stored.Status)
	assert.Zero(t, stored.RetryCount, "data errors do not consume retries")
}

func TestRunPausesWhenWorkflowDeactivated(t *testing.T) {
	h := newHarness(t)
	enrollment := h.seed(t, 1)
	require.NoError(t, h.store.Workflows().SetActive(context.Background(), "wf-1", false))

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunStatusSuccess, summary.Status)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomePaused, summary.Results[0].Outcome)
	assert.Zero(t, h.sender.sends)

	stored := h.reload(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusPaused, stored.Status)
	assert.Equal(t, 1, stored.CurrentStep)
}

func TestRunFailsOnMissingStep(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 1)

	enrollment := &models.Enrollment{
		ID:          "enr-gap",
		OrgID:       "org-1",
		WorkflowID:  "wf-1",
		ContactID:   "contact-gap",
		CurrentStep: 7,
		Status:      models.EnrollmentStatusActive,
		NextSendAt:  runNow.Add(-time.Minute),
	}
	require.NoError(t, h.store.Enrollments().Create(context.Background(), enrollment))

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	stored := h.reload(t, "enr-gap")
	assert.Equal(t, models.EnrollmentStatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "step 7")
	assert.Equal(t, 1, summary.Failed)
}

func TestRunFailsOnMissingAddress(t *testing.T) {
	h := newHarness(t)
	enrollment := h.seed(t, 1)
	h.sender.noAddress = true

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeFailed, summary.Results[0].Outcome)
	assert.Zero(t, h.sender.sends)

	stored := h.reload(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "address")
}

func TestRunRetriesOnBadCredentials(t *testing.T) {
	h := newHarness(t)
	enrollment := h.seed(t, 1)
	h.sender.credsErr = assert.AnError

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeRetried, summary.Results[0].Outcome)
	assert.Zero(t, h.sender.sends, "credential errors fail before the provider call")

	stored := h.reload(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, runNow.Add(5*time.Minute), stored.NextSendAt)
}

func TestRunSkipsSupersededEnrollment(t *testing.T) {
	h := newHarness(t)
	enrollment := h.seed(t, 1)

	// Simulate a concurrent run advancing the enrollment between this run's
	// selection and its write.
	h.sender.onSend = func() {
		patch := models.EnrollmentPatch{
			Status:      models.EnrollmentStatusActive,
			CurrentStep: 2,
			NextSendAt:  runNow.AddDate(0, 0, 3),
		}
		require.NoError(t, h.store.Enrollments().Apply(context.Background(), enrollment.ID, 1, patch))
	}

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeSkipped, summary.Results[0].Outcome)
	assert.Equal(t, 1, summary.Skipped)

	stored := h.reload(t, enrollment.ID)
	assert.Equal(t, 2, stored.CurrentStep, "the concurrent write wins")
}

func TestRunIsolatesFailuresBetweenEnrollments(t *testing.T) {
	h := newHarness(t)
	healthy := h.seed(t, 1)

	orphan := &models.Enrollment{
		ID:          "enr-orphan",
		OrgID:       "org-1",
		WorkflowID:  "wf-1",
		ContactID:   "contact-missing",
		CurrentStep: 1,
		Status:      models.EnrollmentStatusActive,
		NextSendAt:  runNow.Add(-2 * time.Minute),
	}
	require.NoError(t, h.store.Enrollments().Create(context.Background(), orphan))

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunStatusPartial, summary.Status)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Failed)

	assert.Equal(t, models.EnrollmentStatusFailed, h.reload(t, orphan.ID).Status)
	assert.Equal(t, 2, h.reload(t, healthy.ID).CurrentStep)
}

func TestRunRespectsBatchSize(t *testing.T) {
	h := newHarness(t, WithBatchSize(2))
	h.seed(t, 1)

	for i := range 3 {
		enrollment := &models.Enrollment{
			ID:          "enr-extra-" + string(rune('a'+i)),
			OrgID:       "org-1",
			WorkflowID:  "wf-1",
			ContactID:   "contact-extra-" + string(rune('a'+i)),
			CurrentStep: 1,
			Status:      models.EnrollmentStatusActive,
			NextSendAt:  runNow.Add(-time.Hour),
		}
		require.NoError(t, h.store.Enrollments().Create(context.Background(), enrollment))
	}

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
}

func TestRunRecordsChannelOnEnrollmentSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	t.Cleanup(func() {
		require.NoError(t, provider.Shutdown(context.Background()))
	})

	h := newHarness(t, WithTracer(provider.Tracer("test")))
	h.seed(t, 1)

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, RunStatusSuccess, summary.Status)

	var attrs []attribute.KeyValue

	for _, span := range recorder.Ended() {
		if span.Name() == "engine.enrollment" {
			attrs = span.Attributes()
		}
	}

	require.NotEmpty(t, attrs)
	assert.Contains(t, attrs, attribute.String(otelhelper.ChannelKey, string(models.ChannelEmail)))
	assert.Contains(t, attrs, attribute.String(otelhelper.OutcomeKey, string(OutcomeAdvanced)))
}
