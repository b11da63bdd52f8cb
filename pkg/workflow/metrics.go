package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/crewdesk/automation/pkg/persistence"
)

// MetricsUpdater bumps workflow counters after each finished run.
type MetricsUpdater struct {
	repository persistence.WorkflowRepository
	logger     *slog.Logger
}

func NewMetricsUpdater(logger *slog.Logger, repository persistence.WorkflowRepository) *MetricsUpdater {
	return &MetricsUpdater{
		repository: repository,
		logger:     logger.With("module", "workflow_metrics"),
	}
}

// Record increments execution_count, and success_count when success is true.
// Only atomic increments are supported; stores without one get ErrAtomicIncrementUnavailable.
func (m *MetricsUpdater) Record(ctx context.Context, workflowID string, success bool, at time.Time) error {
	incrementer, ok := m.repository.(persistence.MetricsIncrementer)
	if !ok {
		m.logger.ErrorContext(ctx, "workflow store cannot increment metrics atomically", "workflow_id", workflowID)

		return ErrAtomicIncrementUnavailable
	}

	err := incrementer.IncrementMetrics(ctx, workflowID, success, at)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to update workflow metrics", "workflow_id", workflowID, "error", err)

		return err
	}

	return nil
}
