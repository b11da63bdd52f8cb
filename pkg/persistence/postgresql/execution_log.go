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
	"github.com/lib/pq"
)

const executionLogColumns = `
			id
		  , workflow_id
		  , automation_id
		  , organization_id
		  , trigger_type
		  , trigger_data
		  , status
		  , error_message
		  , details
		  , created_at
		  , started_at
		  , completed_at`

// ExecutionLogRepository handles execution log database operations.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ persistence.ExecutionLogRepository = (*ExecutionLogRepository)(nil)

func NewExecutionLogRepository(db *sql.DB, logger *slog.Logger) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, logger: logger}
}

func terminalStatuses() pq.StringArray {
	statuses := make(pq.StringArray, 0, len(models.TerminalStatuses))
	for _, status := range models.TerminalStatuses {
		statuses = append(statuses, string(status))
	}

	return statuses
}

// Create inserts a new execution log. Empty ids get a UUIDv7 and empty statuses default to pending.
func (r *ExecutionLogRepository) Create(ctx context.Context, log *models.ExecutionLog) error {
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

	triggerData, details, err := marshalLog(log)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO execution_logs (id, workflow_id, automation_id, organization_id, trigger_type,
			trigger_data, status, error_message, details, resume_at, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID,
		log.WorkflowID,
		nullString(log.AutomationID),
		nullString(log.OrganizationID),
		log.TriggerType,
		triggerData,
		log.Status,
		nullString(log.ErrorMessage),
		details,
		nullTime(log.Details.ResumeAt),
		log.CreatedAt,
		nullTime(log.StartedAt),
		nullTime(log.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create execution log: %w", err)
	}

	return nil
}

func (r *ExecutionLogRepository) GetByID(ctx context.Context, id string) (*models.ExecutionLog, error) {
	query := `SELECT` + executionLogColumns + `
		FROM execution_logs
		WHERE id = $1
	`

	log, err := scanExecutionLog(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionLogError("GetByID", id, persistence.ErrExecutionLogNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution log: %w", err)
	}

	return log, nil
}

func (r *ExecutionLogRepository) RunnableBatch(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionLog, error) {
	query := `SELECT` + executionLogColumns + `
		FROM execution_logs
		WHERE status = 'pending'
		   OR (status = 'waiting' AND resume_at <= $1)
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`

	return r.queryLogs(ctx, query, now, limit)
}

// Claim is a compare-and-swap on status; started_at keeps the first attempt's timestamp.
func (r *ExecutionLogRepository) Claim(ctx context.Context, id string, from models.ExecutionStatus, startedAt time.Time) (bool, error) {
	query := `
		UPDATE execution_logs
		SET status = 'running', started_at = COALESCE(started_at, $3)
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, from, startedAt)
	if err != nil {
		return false, persistence.NewExecutionLogError("Claim", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func (r *ExecutionLogRepository) Update(ctx context.Context, log *models.ExecutionLog) error {
	triggerData, details, err := marshalLog(log)
	if err != nil {
		return err
	}

	query := `
		UPDATE execution_logs SET
			status = $2,
			error_message = $3,
			details = $4,
			resume_at = $5,
			started_at = $6,
			completed_at = $7,
			trigger_data = $8
		WHERE id = $1 AND NOT (status = ANY($9))
	`

	result, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.Status,
		nullString(log.ErrorMessage),
		details,
		nullTime(log.Details.ResumeAt),
		nullTime(log.StartedAt),
		nullTime(log.CompletedAt),
		triggerData,
		terminalStatuses(),
	)
	if err != nil {
		return persistence.NewExecutionLogError("Update", log.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool

		err = r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM execution_logs WHERE id = $1)", log.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check execution log: %w", err)
		}

		if !exists {
			return persistence.NewExecutionLogError("Update", log.ID, persistence.ErrExecutionLogNotFound)
		}

		return persistence.NewExecutionLogError("Update", log.ID, persistence.ErrExecutionLogTerminal)
	}

	return nil
}

func (r *ExecutionLogRepository) ExpirePending(ctx context.Context, olderThan time.Time, message string, at time.Time) (int64, error) {
	query := `
		UPDATE execution_logs
		SET status = 'expired', error_message = $2, completed_at = $3
		WHERE status = 'pending' AND started_at IS NULL AND created_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, olderThan, message, at)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending execution logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func (r *ExecutionLogRepository) CountByStatus(ctx context.Context, status models.ExecutionStatus) (int64, error) {
	var count int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM execution_logs WHERE status = $1", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count execution logs: %w", err)
	}

	return count, nil
}

func (r *ExecutionLogRepository) CountFailedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM execution_logs WHERE status = 'failed' AND completed_at >= $1", since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed execution logs: %w", err)
	}

	return count, nil
}

// ListByWorkflow returns the newest logs of a workflow first.
func (r *ExecutionLogRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error) {
	query := `SELECT` + executionLogColumns + `
		FROM execution_logs
		WHERE workflow_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	return r.queryLogs(ctx, query, workflowID, limit)
}

func (r *ExecutionLogRepository) queryLogs(ctx context.Context, query string, args ...any) ([]*models.ExecutionLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	logs := make([]*models.ExecutionLog, 0)

	for rows.Next() {
		log, err := scanExecutionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		logs = append(logs, log)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return logs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecutionLog(row rowScanner) (*models.ExecutionLog, error) {
	var (
		log                                        models.ExecutionLog
		automationID, organizationID, errorMessage sql.NullString
		triggerData, details                       []byte
		startedAt, completedAt                     sql.NullTime
	)

	err := row.Scan(
		&log.ID,
		&log.WorkflowID,
		&automationID,
		&organizationID,
		&log.TriggerType,
		&triggerData,
		&log.Status,
		&errorMessage,
		&details,
		&log.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(triggerData) > 0 {
		err = json.Unmarshal(triggerData, &log.TriggerData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
		}
	}

	if len(details) > 0 {
		err = json.Unmarshal(details, &log.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}
	}

	log.AutomationID = automationID.String
	log.OrganizationID = organizationID.String
	log.ErrorMessage = errorMessage.String
	log.StartedAt = timePtr(startedAt)
	log.CompletedAt = timePtr(completedAt)

	return &log, nil
}

func marshalLog(log *models.ExecutionLog) ([]byte, []byte, error) {
	triggerData := log.TriggerData
	if triggerData == nil {
		triggerData = models.TriggerData{}
	}

	triggerJSON, err := json.Marshal(triggerData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	detailsJSON, err := json.Marshal(log.Details)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal details: %w", err)
	}

	return triggerJSON, detailsJSON, nil
}
