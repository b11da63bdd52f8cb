package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ persistence.WorkflowRepository = (*WorkflowRepository)(nil)
	_ persistence.MetricsIncrementer = (*WorkflowRepository)(nil)
)

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetByID returns the workflow or persistence.ErrWorkflowNotFound.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , organization_id
		  , name
		  , trigger_type
		  , steps
		  , template_config
		  , workflow_config
		  , connections
		  , is_active
		  , status
		  , execution_count
		  , success_count
		  , last_executed_at
		  , last_triggered_at
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	var (
		workflow                                            models.Workflow
		steps, templateConfig, workflowConfig, connections []byte
		lastExecutedAt, lastTriggeredAt                     sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.OrganizationID,
		&workflow.Name,
		&workflow.TriggerType,
		&steps,
		&templateConfig,
		&workflowConfig,
		&connections,
		&workflow.IsActive,
		&workflow.Status,
		&workflow.ExecutionCount,
		&workflow.SuccessCount,
		&lastExecutedAt,
		&lastTriggeredAt,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	for target, raw := range map[any][]byte{
		&workflow.Steps:          steps,
		&workflow.TemplateConfig: templateConfig,
		&workflow.WorkflowConfig: workflowConfig,
		&workflow.Connections:    connections,
	} {
		if len(raw) == 0 {
			continue
		}

		err = json.Unmarshal(raw, target)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
		}
	}

	workflow.LastExecutedAt = timePtr(lastExecutedAt)
	workflow.LastTriggeredAt = timePtr(lastTriggeredAt)

	return &workflow, nil
}

// Save upserts a workflow definition. Metric columns are left untouched on update.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	encoded := make([][]byte, 0, 4)

	for _, value := range []any{workflow.Steps, workflow.TemplateConfig, workflow.WorkflowConfig, workflow.Connections} {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
		}

		encoded = append(encoded, raw)
	}

	query := `
		INSERT INTO workflows (id, organization_id, name, trigger_type, steps, template_config,
			workflow_config, connections, is_active, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			name = EXCLUDED.name,
			trigger_type = EXCLUDED.trigger_type,
			steps = EXCLUDED.steps,
			template_config = EXCLUDED.template_config,
			workflow_config = EXCLUDED.workflow_config,
			connections = EXCLUDED.connections,
			is_active = EXCLUDED.is_active,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.OrganizationID,
		workflow.Name,
		workflow.TriggerType,
		encoded[0],
		encoded[1],
		encoded[2],
		encoded[3],
		workflow.IsActive,
		workflow.Status,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// IncrementMetrics bumps the workflow counters in a single statement so concurrent
// workers never lose an increment.
func (r *WorkflowRepository) IncrementMetrics(ctx context.Context, workflowID string, success bool, at time.Time) error {
	query := `
		UPDATE workflows SET
			execution_count = execution_count + 1,
			success_count = success_count + CASE WHEN $2 THEN 1 ELSE 0 END,
			last_executed_at = CASE WHEN $2 THEN $3 ELSE last_executed_at END,
			last_triggered_at = CASE WHEN $2 THEN $3 ELSE last_triggered_at END
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, workflowID, success, at)
	if err != nil {
		return persistence.NewWorkflowError("IncrementMetrics", workflowID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("IncrementMetrics", workflowID, persistence.ErrWorkflowNotFound)
	}

	return nil
}
