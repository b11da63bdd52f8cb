package web

import (
	"context"
	"log/slog"

	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/crewdesk/automation/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type Server struct {
	logger *slog.Logger
	app    *fiber.App
}

func NewServer(
	log *slog.Logger,
	poller *workflow.Poller,
	workflows *workflow.Validator,
	store persistence.Persistence,
) *Server {
	handlers := NewAPIHandlers(log, poller, workflows, store, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return store.HealthCheck(c.Context()) == nil
		},
	}))

	app.Get("/health", handlers.HealthCheck)
	app.Post("/process", handlers.Process)
	app.Post("/maintenance/expire-pending", handlers.ExpirePending)

	logs := app.Group("/execution-logs")
	logs.Post("/", handlers.EnqueueExecution)
	logs.Get("/:id", handlers.GetExecutionLog)

	w := app.Group("/workflows")
	w.Get("/:id/validate", handlers.ValidateWorkflow)
	w.Get("/:id/execution-logs", handlers.ListWorkflowExecutionLogs)

	return &Server{logger: log, app: app}
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("admin server listening", "addr", addr)

	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
