package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/crewdesk/automation/pkg/eventbus"
	"github.com/crewdesk/automation/pkg/log"
	"github.com/crewdesk/automation/pkg/web"
	"github.com/crewdesk/automation/pkg/workflow"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 30 * time.Second

var ErrInvalidWorkflows = errors.New("invalid workflows found")

// setup loads configuration, installs the logger and builds the runtime.
func setup(ctx context.Context, command *cli.Command, action string) (*runtime, error) {
	engine, err := loadConfig(command)
	if err != nil {
		return nil, err
	}

	log.Setup(engine.LogLevel, engine.LogFormat)

	logger := log.WithModule("automation-worker").With("worker_id", engine.WorkerID, "action", action)

	return newRuntime(ctx, logger, engine)
}

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Poll and execute pending automations until interrupted",
		Flags: append(engineFlags(), &cli.BoolFlag{
			Name:    "log-events",
			Usage:   "Consume lifecycle events from the event bus and log them",
			Sources: cli.EnvVars("LOG_EVENTS"),
		}),
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := setup(ctx, command, "run")
			if err != nil {
				return err
			}

			shutdownCtx := context.WithoutCancel(ctx)
			defer rt.close(shutdownCtx)

			poller := rt.engine.Poller

			sweeper, err := workflow.NewSweeper(rt.logger, poller, rt.config.SweepSchedule)
			if err != nil {
				return err
			}

			rt.logger.InfoContext(ctx, "Starting automation worker",
				"poll_interval", rt.config.PollInterval,
				"batch_size", rt.config.BatchSize,
				"event_bus", rt.config.EventBus,
			)

			if command.Bool("log-events") {
				if rt.bus == nil {
					rt.logger.WarnContext(ctx, "--log-events ignored without an event bus")
				} else {
					err = eventbus.LogEvents(ctx, rt.logger.With("module", "events"), rt.bus)
					if err != nil {
						return err
					}
				}
			}

			poller.Start(ctx)
			sweeper.Start()

			var server *web.Server

			serverErr := make(chan error, 1)

			if rt.config.HTTPAddr != "" {
				server = web.NewServer(rt.logger, poller, rt.engine.Validator, rt.store)

				go func() {
					serverErr <- server.Listen(rt.config.HTTPAddr)
				}()
			}

			select {
			case <-ctx.Done():
				rt.logger.InfoContext(shutdownCtx, "Shutdown signal received")
			case err = <-serverErr:
				rt.logger.ErrorContext(shutdownCtx, "Admin server stopped", "error", err)
			}

			stopCtx, cancel := context.WithTimeout(shutdownCtx, shutdownTimeout)
			defer cancel()

			if server != nil {
				shutdownErr := server.Shutdown(stopCtx)
				if shutdownErr != nil {
					rt.logger.ErrorContext(stopCtx, "Failed to stop admin server", "error", shutdownErr)
				}
			}

			stopErr := sweeper.Stop(stopCtx)
			if stopErr != nil {
				rt.logger.ErrorContext(stopCtx, "Failed to stop pending sweep", "error", stopErr)
			}

			stopErr = poller.Stop(stopCtx)
			if stopErr != nil {
				return fmt.Errorf("failed to stop poller: %w", stopErr)
			}

			rt.logger.InfoContext(stopCtx, "Automation worker stopped")

			return err
		},
	}
}

func NewProcessOnceCommand() *cli.Command {
	return &cli.Command{
		Name:  "process-once",
		Usage: "Run a single processing pass and exit",
		Flags: engineFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			rt, err := setup(ctx, command, "process-once")
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			result, err := rt.engine.Poller.ProcessNow(ctx)
			if err != nil {
				return err
			}

			writePassResult(command.Root().Writer, result)

			return nil
		},
	}
}

func NewExpirePendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "expire-pending",
		Usage: "Expire pending execution logs older than the pending expiry",
		Flags: engineFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			rt, err := setup(ctx, command, "expire-pending")
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			count, err := rt.engine.Poller.ClearOldPendingLogs(ctx)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(command.Root().Writer, "Expired %d pending execution logs older than %s\n",
				count, rt.config.PendingExpiry)

			return nil
		},
	}
}

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate the configuration and, optionally, workflows by ID",
		ArgsUsage: "[workflow-id...]",
		Flags:     engineFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			rt, err := setup(ctx, command, "validate")
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			out := command.Root().Writer
			_, _ = fmt.Fprintln(out, "Configuration: VALID")

			invalid := 0

			for _, id := range command.Args().Slice() {
				result, err := rt.engine.Validator.Validate(ctx, id)
				if err != nil {
					return err
				}

				if !result.IsValid {
					invalid++

					_, _ = fmt.Fprintf(out, "Workflow %s: INVALID (%s)\n", id, result.Error)

					continue
				}

				_, _ = fmt.Fprintf(out, "Workflow %s: VALID (%d executable steps)\n", id, len(result.Steps))
			}

			if invalid > 0 {
				return fmt.Errorf("%w: %d", ErrInvalidWorkflows, invalid)
			}

			return nil
		},
	}
}

func writePassResult(out io.Writer, result workflow.PassResult) {
	if result.Busy {
		_, _ = fmt.Fprintln(out, "A pass is already in progress")

		return
	}

	_, _ = fmt.Fprintf(out,
		"Fetched %d: completed %d, failed %d, retrying %d, waiting %d, skipped %d, deferred %d\n",
		result.Fetched, result.Completed, result.Failed, result.Retrying,
		result.Waiting, result.Skipped, result.Deferred,
	)
}
