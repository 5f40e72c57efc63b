// Package web provides HTTP handlers and REST API endpoints for workflow and
// enrollment management plus the run trigger.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/cadencehq/cadence/pkg/engine"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/runlock"
	"github.com/cadencehq/cadence/pkg/services"
)

type APIHandlers struct {
	workflowService   *services.Workflow
	enrollmentService *services.Enrollment
	engine            *engine.Engine
	lock              *runlock.Lock
	validator         *validator.Validate
	logger            *slog.Logger
}

// NewAPIHandlers wires the API surface. The run lock is optional; without it
// overlapping run triggers rely on the engine's per-enrollment guard alone.
func NewAPIHandlers(
	workflowService *services.Workflow,
	enrollmentService *services.Enrollment,
	eng *engine.Engine,
	lock *runlock.Lock,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		workflowService:   workflowService,
		enrollmentService: enrollmentService,
		engine:            eng,
		lock:              lock,
		validator:         validator,
		logger:            logger.With("module", "web"),
	}
}

// TriggerRun executes one engine pass. The response code encodes the verdict:
// 204 when nothing was due, 200 when every enrollment succeeded, 207 on a mix
// of successes and failures, 502 when every attempt failed, 500 when the due
// set could not be fetched at all.
func (h *APIHandlers) TriggerRun(c fiber.Ctx) error {
	ctx := c.Context()

	if h.lock != nil {
		token, err := h.lock.Acquire(ctx)
		if err != nil {
			if errors.Is(err, runlock.ErrHeld) {
				return conflict(c, "a run is already in progress")
			}

			return internalError(c, err)
		}

		defer func() {
			err := h.lock.Release(ctx, token)
			if err != nil {
				h.logger.ErrorContext(ctx, "Failed to release run lock", "error", err)
			}
		}()
	}

	summary, err := h.engine.Run(ctx)
	if err != nil {
		return internalError(c, err)
	}

	switch summary.Status {
	case engine.RunStatusIdle:
		return c.SendStatus(fiber.StatusNoContent)
	case engine.RunStatusSuccess:
		return c.JSON(summary)
	case engine.RunStatusPartial:
		return c.Status(fiber.StatusMultiStatus).JSON(summary)
	default:
		return c.Status(fiber.StatusBadGateway).JSON(summary)
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	orgID := c.Query("org_id")
	if orgID == "" {
		return badRequest(c, "org_id query parameter is required")
	}

	workflows, err := h.workflowService.List(c.Context(), orgID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrWorkflowNotFound) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		OrgID:       req.OrgID,
		Name:        req.Name,
		Description: req.Description,
		Steps:       make([]*models.WorkflowStep, 0, len(req.Steps)),
	}
	for _, step := range req.Steps {
		workflow.Steps = append(workflow.Steps, step.ToModel())
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.workflowService.Activate(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	paused, err := h.workflowService.Deactivate(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(DeactivateWorkflowResponse{
		ID:                id,
		Active:            false,
		PausedEnrollments: paused,
	})
}

func (h *APIHandlers) CreateEnrollment(c fiber.Ctx) error {
	var req CreateEnrollmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	enrollment, err := h.enrollmentService.Enroll(c.Context(), services.EnrollRequest{
		OrgID:      req.OrgID,
		WorkflowID: req.WorkflowID,
		ContactID:  req.ContactID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(enrollment)
}

func (h *APIHandlers) GetEnrollment(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Enrollment ID is required")
	}

	enrollment, err := h.enrollmentService.FetchByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrEnrollmentNotFound) {
			return notFound(c, "Enrollment not found")
		}

		return internalError(c, err)
	}

	return c.JSON(enrollment)
}

func (h *APIHandlers) ResumeEnrollment(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Enrollment ID is required")
	}

	enrollment, err := h.enrollmentService.Resume(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(enrollment)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Cadence API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Cadence API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
