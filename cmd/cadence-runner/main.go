package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/cadencehq/cadence/pkg/cmd"
	"github.com/cadencehq/cadence/pkg/log"
	"github.com/cadencehq/cadence/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "cadence-runner",
		Usage:                 "Run the scheduled enrollment processing loop",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "runner-id",
				Aliases: []string{"id"},
				Usage:   "Custom runner ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("RUNNER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the run lock (optional)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for the processing loop",
				Value:   "* * * * *",
				Sources: cli.EnvVars("RUN_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Execute a single run and exit",
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			runnerID := command.String("runner-id")
			if runnerID == "" {
				runnerID = fmt.Sprintf("runner-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("cadence-runner").With("runner_id", runnerID)

			logger.InfoContext(ctx, "Initializing Cadence Runner")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "cadence-runner", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			runner := NewRunner(
				runnerID,
				persistence,
				eventBus,
				cmd.NewRunLock(command.String("redis-url"), logger),
				logger,
			)

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "cadence-runner")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				runner.tracer = tracer
			}

			if command.Bool("once") {
				return runner.RunOnce(ctx)
			}

			return runner.Start(ctx, command.String("schedule"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
