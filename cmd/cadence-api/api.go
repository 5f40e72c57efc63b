// Package main provides the Cadence API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/cadencehq/cadence/pkg/channel"
	"github.com/cadencehq/cadence/pkg/cmd"
	"github.com/cadencehq/cadence/pkg/engine"
	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/runlock"
	"github.com/cadencehq/cadence/pkg/services"
	"github.com/cadencehq/cadence/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	lock        *runlock.Lock
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	lock *runlock.Lock,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		lock:        lock,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	registry := cmd.NewSenderRegistry(a.logger)
	dispatcher := channel.NewDispatcher(registry, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(a.persistence, registry),
		services.NewEnrollment(a.persistence),
		engine.New(a.persistence, dispatcher, a.logger),
		a.lock,
		a.validate,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Cadence API")
	})

	v1 := app.Group("/v1")
	v1.Post("/runs", handlers.TriggerRun)

	w := v1.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/deactivate", handlers.DeactivateWorkflow)

	e := v1.Group("/enrollments")
	e.Post("/", handlers.CreateEnrollment)
	e.Get("/:id", handlers.GetEnrollment)
	e.Post("/:id/resume", handlers.ResumeEnrollment)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	// The history recorder shares the API process so local gochannel setups
	// still record conversations.
	recorder := services.NewHistory(a.persistence, a.eventBus, a.logger)

	err := recorder.Start(ctx)
	if err != nil {
		return err
	}

	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
