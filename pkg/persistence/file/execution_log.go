package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/google/uuid"
)

const executionLogsCollection = "execution_logs"

// ExecutionLogRepository handles execution log file operations.
type ExecutionLogRepository struct {
	store *store
}

var _ persistence.ExecutionLogRepository = (*ExecutionLogRepository)(nil)

func (r *ExecutionLogRepository) Create(_ context.Context, log *models.ExecutionLog) error {
	if log.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution log ID: %w", err)
		}

		log.ID = id.String()
	}

	if log.Status == "" {
		log.Status = models.ExecutionStatusPending
	}

	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(executionLogsCollection, log.ID, log)
}

func (r *ExecutionLogRepository) GetByID(_ context.Context, id string) (*models.ExecutionLog, error) {
	return r.get(id)
}

func (r *ExecutionLogRepository) get(id string) (*models.ExecutionLog, error) {
	var log models.ExecutionLog

	err := r.store.read(executionLogsCollection, id, &log)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewExecutionLogError("GetByID", id, persistence.ErrExecutionLogNotFound)
		}

		return nil, fmt.Errorf("failed to read execution log %s: %w", id, err)
	}

	return &log, nil
}

func (r *ExecutionLogRepository) all() ([]*models.ExecutionLog, error) {
	ids, err := r.store.ids(executionLogsCollection)
	if err != nil {
		return nil, err
	}

	logs := make([]*models.ExecutionLog, 0, len(ids))

	for _, id := range ids {
		log, err := r.get(id)
		if err != nil {
			return nil, err
		}

		logs = append(logs, log)
	}

	return logs, nil
}

func (r *ExecutionLogRepository) filter(match func(*models.ExecutionLog) bool) ([]*models.ExecutionLog, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	logs, err := r.all()
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(logs, func(log *models.ExecutionLog) bool { return !match(log) }), nil
}

func (r *ExecutionLogRepository) RunnableBatch(_ context.Context, now time.Time, limit int) ([]*models.ExecutionLog, error) {
	logs, err := r.filter(func(log *models.ExecutionLog) bool {
		switch log.Status {
		case models.ExecutionStatusPending:
			return true
		case models.ExecutionStatusWaiting:
			return log.Details.ResumeAt != nil && !log.Details.ResumeAt.After(now)
		default:
			return false
		}
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(logs, func(a, b *models.ExecutionLog) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}

	return logs, nil
}

func (r *ExecutionLogRepository) Claim(_ context.Context, id string, from models.ExecutionStatus, startedAt time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	log, err := r.get(id)
	if err != nil {
		return false, err
	}

	if log.Status != from {
		return false, nil
	}

	log.Status = models.ExecutionStatusRunning
	if log.StartedAt == nil {
		log.StartedAt = &startedAt
	}

	err = r.store.write(executionLogsCollection, id, log)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (r *ExecutionLogRepository) Update(_ context.Context, log *models.ExecutionLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, err := r.get(log.ID)
	if err != nil {
		return err
	}

	if current.Status.IsTerminal() {
		return persistence.NewExecutionLogError("Update", log.ID, persistence.ErrExecutionLogTerminal)
	}

	return r.store.write(executionLogsCollection, log.ID, log)
}

func (r *ExecutionLogRepository) ExpirePending(_ context.Context, olderThan time.Time, message string, at time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	logs, err := r.all()
	if err != nil {
		return 0, err
	}

	var count int64

	for _, log := range logs {
		if log.Status != models.ExecutionStatusPending || log.StartedAt != nil || !log.CreatedAt.Before(olderThan) {
			continue
		}

		log.Status = models.ExecutionStatusExpired
		log.ErrorMessage = message
		log.CompletedAt = &at

		err = r.store.write(executionLogsCollection, log.ID, log)
		if err != nil {
			return count, err
		}

		count++
	}

	return count, nil
}

func (r *ExecutionLogRepository) CountByStatus(_ context.Context, status models.ExecutionStatus) (int64, error) {
	logs, err := r.filter(func(log *models.ExecutionLog) bool { return log.Status == status })
	if err != nil {
		return 0, err
	}

	return int64(len(logs)), nil
}

func (r *ExecutionLogRepository) CountFailedSince(_ context.Context, since time.Time) (int64, error) {
	logs, err := r.filter(func(log *models.ExecutionLog) bool {
		return log.Status == models.ExecutionStatusFailed && log.CompletedAt != nil && !log.CompletedAt.Before(since)
	})
	if err != nil {
		return 0, err
	}

	return int64(len(logs)), nil
}

func (r *ExecutionLogRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error) {
	logs, err := r.filter(func(log *models.ExecutionLog) bool { return log.WorkflowID == workflowID })
	if err != nil {
		return nil, err
	}

	slices.SortFunc(logs, func(a, b *models.ExecutionLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}

	return logs, nil
}
