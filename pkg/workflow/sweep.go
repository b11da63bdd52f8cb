package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper runs ClearOldPendingLogs on a cron schedule, independently of the poll loop.
type Sweeper struct {
	poller *Poller
	cron   *cron.Cron
	logger *slog.Logger
}

func NewSweeper(logger *slog.Logger, poller *Poller, schedule string) (*Sweeper, error) {
	s := &Sweeper{
		poller: poller,
		cron:   cron.New(),
		logger: logger.With("module", "pending_sweeper"),
	}

	_, err := s.cron.AddFunc(schedule, s.sweep)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Sweeper) sweep() {
	ctx := context.Background()

	count, err := s.poller.ClearOldPendingLogs(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "pending sweep failed", "error", err)

		return
	}

	s.logger.DebugContext(ctx, "pending sweep finished", "expired", count)
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
