package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crewdesk/automation/pkg/config"
	"github.com/crewdesk/automation/pkg/eventbus"
	"github.com/crewdesk/automation/pkg/lock"
	"github.com/crewdesk/automation/pkg/otelhelper"
	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/crewdesk/automation/pkg/senders"
	"github.com/crewdesk/automation/pkg/senders/logsender"
	"github.com/crewdesk/automation/pkg/senders/sendgrid"
	"github.com/crewdesk/automation/pkg/senders/twilio"
	"github.com/crewdesk/automation/pkg/template"
	"github.com/crewdesk/automation/pkg/workflow"
	"go.opentelemetry.io/otel/trace"
)

// NewLocker connects to Redis when redisURL is set and falls back to an in-process locker.
func NewLocker(ctx context.Context, redisURL string) (lock.Locker, error) {
	if redisURL == "" {
		return lock.NewLocalLocker(), nil
	}

	return lock.NewRedisLocker(ctx, redisURL)
}

func NewSenders(logger *slog.Logger, engine config.Engine) (senders.SMSSender, senders.EmailSender, error) {
	fallback := logsender.New(logger)

	var (
		sms   senders.SMSSender   = fallback
		email senders.EmailSender = fallback
	)

	if engine.SMS.Provider == "twilio" {
		sender, err := twilio.NewSender(logger, twilio.Config{
			AccountSID: engine.SMS.AccountSID,
			AuthToken:  engine.SMS.AuthToken,
			From:       engine.SMS.From,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to configure twilio: %w", err)
		}

		sms = sender
	}

	if engine.Email.Provider == "sendgrid" {
		sender, err := sendgrid.NewSender(logger, sendgrid.Config{
			APIKey:   engine.Email.APIKey,
			From:     engine.Email.From,
			FromName: engine.Email.FromName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to configure sendgrid: %w", err)
		}

		email = sender
	}

	return sms, email, nil
}

// NewTracer exports spans over OTLP when enabled and returns a no-op tracer otherwise.
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, enabled bool) (trace.Tracer, otelhelper.ShutdownFunc, error) {
	if !enabled {
		return otelhelper.NewNoopTracer("automation-worker"), func(context.Context) error { return nil }, nil
	}

	return otelhelper.NewTracer(ctx, "automation-worker")
}

// Engine bundles a ready poller with the validator it uses.
type Engine struct {
	Poller    *workflow.Poller
	Validator *workflow.Validator
}

// NewEngine wires the poller and its collaborators from configuration.
func NewEngine(
	logger *slog.Logger,
	engine config.Engine,
	store persistence.Persistence,
	locker lock.Locker,
	bus eventbus.EventPublisher,
	sms senders.SMSSender,
	email senders.EmailSender,
	tracer trace.Tracer,
) (*Engine, error) {
	resolver, err := template.NewResolver(logger, store.EntityRepository(), engine.DefaultTimezone)
	if err != nil {
		return nil, err
	}

	schemas, err := workflow.NewStepSchemas()
	if err != nil {
		return nil, err
	}

	interpreter := workflow.NewInterpreter(
		logger,
		sms,
		email,
		store.NotificationRepository(),
		store.TaskRepository(),
		schemas,
		tracer,
		workflow.InterpreterOptions{InlineDelayThreshold: engine.InlineDelayThreshold},
	)

	validator := workflow.NewValidator(workflow.NewCache(store.WorkflowRepository(), engine.CacheTTL))

	poller := workflow.NewPoller(logger, workflow.Dependencies{
		Logs:        store.ExecutionLogRepository(),
		Validator:   validator,
		Resolver:    resolver,
		Interpreter: interpreter,
		Metrics:     workflow.NewMetricsUpdater(logger, store.WorkflowRepository()),
		Locker:      locker,
		Publisher:   bus,
		Tracer:      tracer,
	}, workflow.Options{
		WorkerID:      engine.WorkerID,
		PollInterval:  engine.PollInterval,
		BatchSize:     engine.BatchSize,
		MaxRetries:    engine.MaxRetries,
		PendingExpiry: engine.PendingExpiry,
		LockTTL:       engine.LockTTL,
	})

	return &Engine{Poller: poller, Validator: validator}, nil
}
