// Package engine implements the workflow enrollment execution engine: the
// component that, on every run, selects due enrollments, validates
// preconditions, dispatches the channel send and decides each enrollment's
// next state. Runs are idempotent under at-least-once invocation: state
// transitions only apply against the current_step read at selection time, so
// an overlapping run can duplicate a send but never double-advance.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cadencehq/cadence/pkg/channel"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/otelhelper"
	"github.com/cadencehq/cadence/pkg/persistence"
)

type Engine struct {
	persistence persistence.Persistence
	dispatcher  *channel.Dispatcher
	logger      *slog.Logger
	tracer      trace.Tracer
	batchSize   int
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize overrides the per-run selection cap.
func WithBatchSize(size int) Option {
	return func(e *Engine) {
		e.batchSize = size
	}
}

// WithClock overrides the engine's time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithTracer overrides the tracer used for run spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func New(p persistence.Persistence, dispatcher *channel.Dispatcher, logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{
		persistence: p,
		dispatcher:  dispatcher,
		logger:      logger.With("module", "engine"),
		tracer:      otel.Tracer("cadence/engine"),
		batchSize:   DefaultBatchSize,
		now:         func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Run executes one processing pass. Only a failure to fetch the due set is
// batch-fatal; every enrollment-level error is caught, persisted on that
// enrollment and reported in the summary.
func (e *Engine) Run(ctx context.Context) (*RunSummary, error) {
	runID := "run-" + uuid.NewString()[:8]
	started := e.now()

	logger := e.logger.With("run_id", runID)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.run",
		attribute.String(otelhelper.RunIDKey, runID),
	)
	defer span.End()

	due, err := e.persistence.Enrollments().Due(ctx, started, e.batchSize)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to fetch due enrollments", "error", err)

		return nil, fmt.Errorf("failed to fetch due enrollments: %w", err)
	}

	logger.InfoContext(ctx, "Starting run", "due", len(due))

	summary := &RunSummary{Results: make([]EnrollmentResult, 0, len(due))}

	for _, enrollment := range due {
		summary.add(e.processOne(ctx, logger, enrollment))
	}

	summary.finalize()
	summary.ElapsedMS = e.now().Sub(started).Milliseconds()

	span.SetAttributes(
		attribute.String(otelhelper.OutcomeKey, string(summary.Status)),
		attribute.Int("cadence.run.processed", summary.Processed),
	)

	logger.InfoContext(ctx, "Run finished",
		"status", summary.Status,
		"processed", summary.Processed,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"retried", summary.Retried,
		"skipped", summary.Skipped,
		"elapsed_ms", summary.ElapsedMS,
	)

	return summary, nil
}

// processOne handles a single enrollment with full isolation: a panic is
// converted into a terminal failure for this enrollment only.
func (e *Engine) processOne(ctx context.Context, logger *slog.Logger, enrollment *models.Enrollment) (result EnrollmentResult) {
	logger = logger.With(
		"enrollment_id", enrollment.ID,
		"workflow_id", enrollment.WorkflowID,
		"contact_id", enrollment.ContactID,
		"step", enrollment.CurrentStep,
	)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.enrollment",
		attribute.String(otelhelper.EnrollmentIDKey, enrollment.ID),
		attribute.String(otelhelper.WorkflowIDKey, enrollment.WorkflowID),
		attribute.String(otelhelper.ContactIDKey, enrollment.ContactID),
		attribute.Int(otelhelper.StepOrderKey, enrollment.CurrentStep),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			detail := fmt.Sprintf("internal error: %v", r)
			logger.ErrorContext(ctx, "Panic while processing enrollment", "panic", r)
			result = e.apply(ctx, logger, enrollment, FailPatch(enrollment, detail), OutcomeFailed, detail)
		}

		span.SetAttributes(attribute.String(otelhelper.OutcomeKey, string(result.Outcome)))
	}()

	result = e.process(ctx, logger, enrollment)

	return result
}

func (e *Engine) process(ctx context.Context, logger *slog.Logger, enrollment *models.Enrollment) EnrollmentResult {
	now := e.now()

	workflow, err := e.persistence.Workflows().GetByID(ctx, enrollment.WorkflowID)
	if err != nil {
		detail := fmt.Sprintf("failed to load workflow %s: %v", enrollment.WorkflowID, err)

		return e.apply(ctx, logger, enrollment, FailPatch(enrollment, detail), OutcomeFailed, detail)
	}

	if !workflow.Active {
		detail := fmt.Sprintf("workflow %q is deactivated", workflow.Name)
		logger.InfoContext(ctx, "Pausing enrollment", "reason", detail)

		return e.apply(ctx, logger, enrollment, PausePatch(enrollment, detail), OutcomePaused, detail)
	}

	step := workflow.Step(enrollment.CurrentStep)
	if step == nil {
		// A missing step will never appear; retrying cannot help.
		detail := fmt.Sprintf("step %d not found in workflow %q", enrollment.CurrentStep, workflow.Name)

		return e.apply(ctx, logger, enrollment, FailPatch(enrollment, detail), OutcomeFailed, detail)
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(otelhelper.ChannelKey, string(step.Channel)),
	)

	sender, err := e.dispatcher.Registry().Sender(step.Channel)
	if err != nil {
		return e.apply(ctx, logger, enrollment, FailPatch(enrollment, err.Error()), OutcomeFailed, err.Error())
	}

	if err := sender.CheckContent(step); err != nil {
		return e.apply(ctx, logger, enrollment, FailPatch(enrollment, err.Error()), OutcomeFailed, err.Error())
	}

	contact, err := e.persistence.Contacts().GetByID(ctx, enrollment.ContactID)
	if err != nil {
		detail := fmt.Sprintf("failed to load contact %s: %v", enrollment.ContactID, err)

		return e.apply(ctx, logger, enrollment, FailPatch(enrollment, detail), OutcomeFailed, detail)
	}

	if sender.Address(contact) == "" {
		detail := fmt.Sprintf("contact has no %s address", step.Channel)

		return e.apply(ctx, logger, enrollment, FailPatch(enrollment, detail), OutcomeFailed, detail)
	}

	// Credential gaps are recoverable: an operator can fix them without
	// re-enrolling, so they consume a retry instead of failing outright.
	creds, err := e.credentials(ctx, enrollment.OrgID, step.Channel, sender)
	if err != nil {
		patch, tag, detail := Transition(enrollment, workflow, SendOutcome{Error: err.Error()}, now)

		return e.apply(ctx, logger, enrollment, patch, tag, detail)
	}

	outcome := SendOutcome{Delivered: true}

	_, err = e.dispatcher.Dispatch(ctx, sender, creds, contact, step, enrollment)
	if err != nil {
		logger.WarnContext(ctx, "Send failed", "channel", step.Channel, "error", err)
		outcome = SendOutcome{Error: err.Error()}
	}

	patch, tag, detail := Transition(enrollment, workflow, outcome, now)

	result := e.apply(ctx, logger, enrollment, patch, tag, detail)
	if result.Outcome == OutcomeCompleted {
		e.dispatcher.PublishCompleted(ctx, enrollment, *patch.CompletedAt)
	}

	return result
}

func (e *Engine) credentials(ctx context.Context, orgID string, ch models.Channel, sender channel.Sender) (*models.ChannelCredentials, error) {
	creds, err := e.persistence.Credentials().Get(ctx, orgID, ch)
	if err != nil {
		if errors.Is(err, persistence.ErrCredentialsNotFound) {
			return nil, fmt.Errorf("no %s credentials configured for organization %s", ch, orgID)
		}

		return nil, err
	}

	err = sender.CheckCredentials(creds)
	if err != nil {
		return nil, err
	}

	return creds, nil
}

// apply persists the transition as one unit, guarded by the step read at
// selection time.
func (e *Engine) apply(ctx context.Context, logger *slog.Logger, enrollment *models.Enrollment, patch models.EnrollmentPatch, tag OutcomeTag, detail string) EnrollmentResult {
	err := e.persistence.Enrollments().Apply(ctx, enrollment.ID, enrollment.CurrentStep, patch)
	if err != nil {
		if errors.Is(err, persistence.ErrEnrollmentSuperseded) {
			logger.WarnContext(ctx, "Transition superseded by concurrent run")

			return EnrollmentResult{
				EnrollmentID: enrollment.ID,
				ContactID:    enrollment.ContactID,
				Outcome:      OutcomeSkipped,
				Detail:       "superseded by concurrent run",
			}
		}

		logger.ErrorContext(ctx, "Failed to persist transition", "error", err)

		return EnrollmentResult{
			EnrollmentID: enrollment.ID,
			ContactID:    enrollment.ContactID,
			Outcome:      OutcomeFailed,
			Detail:       fmt.Sprintf("failed to persist transition: %v", err),
		}
	}

	logger.InfoContext(ctx, "Enrollment processed", "outcome", tag, "detail", detail)

	return EnrollmentResult{
		EnrollmentID: enrollment.ID,
		ContactID:    enrollment.ContactID,
		Outcome:      tag,
		Detail:       detail,
	}
}
