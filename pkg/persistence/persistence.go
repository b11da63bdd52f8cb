// Package persistence provides the data storage abstraction used by the automation engine.
package persistence

import (
	"context"
	"time"

	"github.com/crewdesk/automation/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionLogRepository() ExecutionLogRepository
	NotificationRepository() NotificationRepository
	TaskRepository() TaskRepository
	EntityRepository() EntityRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository reads workflow definitions. The engine only writes metric columns.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
}

// MetricsIncrementer is implemented by stores able to bump workflow counters atomically.
// On success both execution_count and success_count grow and the timestamps are stamped;
// on failure only execution_count grows.
type MetricsIncrementer interface {
	IncrementMetrics(ctx context.Context, workflowID string, success bool, at time.Time) error
}

type ExecutionLogRepository interface {
	Create(ctx context.Context, log *models.ExecutionLog) error
	GetByID(ctx context.Context, id string) (*models.ExecutionLog, error)

	// RunnableBatch returns pending logs plus waiting logs whose resume_at is due,
	// oldest created_at first, at most limit entries.
	RunnableBatch(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionLog, error)

	// Claim moves a log from status from to running only if it is still in from.
	// It returns false when another worker won the race.
	Claim(ctx context.Context, id string, from models.ExecutionStatus, startedAt time.Time) (bool, error)

	// Update persists status, error message, details and completion time.
	// Logs already in a terminal status are never modified; ErrExecutionLogTerminal is returned.
	Update(ctx context.Context, log *models.ExecutionLog) error

	// ExpirePending marks every never-started pending log created before olderThan as expired.
	// Logs requeued for a retry keep their started_at and are left to the retry budget.
	ExpirePending(ctx context.Context, olderThan time.Time, message string, at time.Time) (int64, error)

	CountByStatus(ctx context.Context, status models.ExecutionStatus) (int64, error)
	CountFailedSince(ctx context.Context, since time.Time) (int64, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error)
}

type NotificationRepository interface {
	Insert(ctx context.Context, notification *models.Notification) error
}

type TaskRepository interface {
	Insert(ctx context.Context, task *models.Task) error
}

// EntityRepository looks up CRM records. Missing records return ErrEntityNotFound.
type EntityRepository interface {
	Client(ctx context.Context, id string) (*models.Client, error)
	Job(ctx context.Context, id string) (*models.Job, error)
	Invoice(ctx context.Context, id string) (*models.Invoice, error)
	Task(ctx context.Context, id string) (*models.Task, error)
	Company(ctx context.Context, organizationID string) (*models.Company, error)
}
