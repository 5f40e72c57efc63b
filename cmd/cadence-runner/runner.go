// Package main provides the Cadence runner, the scheduled loop that drives
// enrollment processing.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/cadencehq/cadence/pkg/channel"
	"github.com/cadencehq/cadence/pkg/cmd"
	"github.com/cadencehq/cadence/pkg/engine"
	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/runlock"
	"github.com/cadencehq/cadence/pkg/services"
)

type Runner struct {
	id          string
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	lock        *runlock.Lock
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewRunner(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	lock *runlock.Lock,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		id:          id,
		persistence: p,
		eventBus:    eventBus,
		lock:        lock,
		logger:      logger,
	}
}

func (r *Runner) engine() *engine.Engine {
	registry := cmd.NewSenderRegistry(r.logger)
	dispatcher := channel.NewDispatcher(registry, r.eventBus, r.logger)

	opts := []engine.Option{}
	if r.tracer != nil {
		opts = append(opts, engine.WithTracer(r.tracer))
	}

	return engine.New(r.persistence, dispatcher, r.logger, opts...)
}

// RunOnce executes a single processing pass.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.run(ctx, r.engine())
}

// Start runs the processing loop on the given cron schedule until the context
// is canceled. The history recorder is started alongside so gochannel setups
// record conversations in-process.
func (r *Runner) Start(ctx context.Context, schedule string) error {
	_, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("invalid run schedule %q: %w", schedule, err)
	}

	recorder := services.NewHistory(r.persistence, r.eventBus, r.logger)

	err = recorder.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start history recorder: %w", err)
	}

	eng := r.engine()

	scheduler := cron.New()

	_, err = scheduler.AddFunc(schedule, func() {
		err := r.run(ctx, eng)
		if err != nil {
			r.logger.ErrorContext(ctx, "Run failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Starting run loop", "schedule", schedule)
	scheduler.Start()

	<-ctx.Done()

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	return nil
}

func (r *Runner) run(ctx context.Context, eng *engine.Engine) error {
	if r.lock != nil {
		token, err := r.lock.Acquire(ctx)
		if err != nil {
			if errors.Is(err, runlock.ErrHeld) {
				r.logger.InfoContext(ctx, "Skipping run, another runner holds the lock")

				return nil
			}

			return err
		}

		defer func() {
			err := r.lock.Release(ctx, token)
			if err != nil {
				r.logger.ErrorContext(ctx, "Failed to release run lock", "error", err)
			}
		}()
	}

	_, err := eng.Run(ctx)

	return err
}
