package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crewdesk/automation/pkg/cmd"
	"github.com/crewdesk/automation/pkg/config"
	"github.com/crewdesk/automation/pkg/eventbus"
	"github.com/crewdesk/automation/pkg/lock"
	"github.com/crewdesk/automation/pkg/otelhelper"
	"github.com/crewdesk/automation/pkg/persistence"
)

// runtime owns every long-lived resource of one command invocation.
type runtime struct {
	config config.Engine
	logger *slog.Logger

	store          persistence.Persistence
	bus            eventbus.EventBus
	locker         lock.Locker
	shutdownTracer otelhelper.ShutdownFunc
	engine         *cmd.Engine
}

func newRuntime(ctx context.Context, logger *slog.Logger, engine config.Engine) (*runtime, error) {
	r := &runtime{config: engine, logger: logger}

	var err error

	r.store, err = cmd.NewPersistence(ctx, logger, engine.DatabaseURL)
	if err != nil {
		return nil, err
	}

	r.bus, err = cmd.NewEventBus(logger, engine.EventBus, engine.KafkaBrokers)
	if err != nil {
		r.close(ctx)

		return nil, err
	}

	r.locker, err = cmd.NewLocker(ctx, engine.RedisURL)
	if err != nil {
		r.close(ctx)

		return nil, fmt.Errorf("failed to create execution locker: %w", err)
	}

	tracer, shutdown, err := cmd.NewTracer(ctx, engine.Tracing)
	if err != nil {
		r.close(ctx)

		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	r.shutdownTracer = shutdown

	sms, email, err := cmd.NewSenders(logger, engine)
	if err != nil {
		r.close(ctx)

		return nil, err
	}

	var publisher eventbus.EventPublisher
	if r.bus != nil {
		publisher = r.bus
	}

	r.engine, err = cmd.NewEngine(logger, engine, r.store, r.locker, publisher, sms, email, tracer)
	if err != nil {
		r.close(ctx)

		return nil, err
	}

	return r, nil
}

// close releases resources in reverse order of creation. Safe on a partly built runtime.
func (r *runtime) close(ctx context.Context) {
	if r.shutdownTracer != nil {
		err := r.shutdownTracer(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
		}
	}

	if r.locker != nil {
		err := r.locker.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to close execution locker", "error", err)
		}
	}

	if r.bus != nil {
		err := r.bus.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}

	if r.store != nil {
		err := r.store.Close(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}
}
