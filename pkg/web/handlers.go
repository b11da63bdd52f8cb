// Package web exposes the engine's admin surface over HTTP.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/crewdesk/automation/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const defaultListLimit = 50

type APIHandlers struct {
	logger    *slog.Logger
	poller    *workflow.Poller
	workflows *workflow.Validator
	store     persistence.Persistence
	validator *validator.Validate
}

func NewAPIHandlers(
	logger *slog.Logger,
	poller *workflow.Poller,
	workflows *workflow.Validator,
	store persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		logger:    logger,
		poller:    poller,
		workflows: workflows,
		store:     store,
		validator: validator,
	}
}

// HealthCheck reports the poller's HealthStatus. A store that cannot be
// queried turns the response into a 503 with whatever was collected.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status, err := h.poller.HealthStatus(c.Context())

	body := fiber.Map{
		"status":    "healthy",
		"poller":    status,
		"timestamp": time.Now().UTC(),
	}

	if err != nil {
		h.logger.ErrorContext(c.Context(), "health check failed", "error", err)

		body["status"] = "unhealthy"
		body["error"] = err.Error()

		return c.Status(http.StatusServiceUnavailable).JSON(body)
	}

	return c.JSON(body)
}

// Process runs one pass immediately.
func (h *APIHandlers) Process(c fiber.Ctx) error {
	result, err := h.poller.ProcessNow(c.Context())
	if err != nil {
		return unavailable(c, err)
	}

	if result.Busy {
		return conflict(c, "a pass is already in progress")
	}

	return c.JSON(result)
}

func (h *APIHandlers) ExpirePending(c fiber.Ctx) error {
	count, err := h.poller.ClearOldPendingLogs(c.Context())
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(ExpireResponse{Expired: count})
}

// EnqueueExecution records a pending execution log for a trigger.
func (h *APIHandlers) EnqueueExecution(c fiber.Ctx) error {
	var req EnqueueRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	log := req.ExecutionLog()

	err := h.store.ExecutionLogRepository().Create(c.Context(), log)
	if err != nil {
		return storeError(c, err)
	}

	h.logger.InfoContext(c.Context(), "execution log enqueued",
		"execution_log_id", log.ID,
		"workflow_id", log.WorkflowID,
		"trigger_type", log.TriggerType,
	)

	return c.Status(fiber.StatusCreated).JSON(log)
}

func (h *APIHandlers) GetExecutionLog(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution log ID is required")
	}

	log, err := h.store.ExecutionLogRepository().GetByID(c.Context(), id)
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(log)
}

// ListWorkflowExecutionLogs returns the most recent logs of a workflow, newest first.
func (h *APIHandlers) ListWorkflowExecutionLogs(c fiber.Ctx) error {
	limit := defaultListLimit

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}

		limit = parsed
	}

	logs, err := h.store.ExecutionLogRepository().ListByWorkflow(c.Context(), c.Params("id"), limit)
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(fiber.Map{"execution_logs": logs, "limit": limit})
}

// ValidateWorkflow runs the same checks the poller applies before executing a log.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	result, err := h.workflows.Validate(c.Context(), id)
	if err != nil {
		return storeError(c, err)
	}

	response := ValidationResponse{
		WorkflowID: id,
		Valid:      result.IsValid,
		Steps:      len(result.Steps),
	}

	if result.Error != nil {
		response.Error = result.Error.Error()
	}

	return c.JSON(response)
}
