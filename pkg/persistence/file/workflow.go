package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/google/uuid"
)

const workflowsCollection = "workflows"

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	store *store
}

var (
	_ persistence.WorkflowRepository = (*WorkflowRepository)(nil)
	_ persistence.MetricsIncrementer = (*WorkflowRepository)(nil)
)

func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := wr.store.read(workflowsCollection, id, &workflow)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
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

	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	return wr.store.write(workflowsCollection, workflow.ID, workflow)
}

// IncrementMetrics performs the read-modify-write under the store lock.
func (wr *WorkflowRepository) IncrementMetrics(ctx context.Context, workflowID string, success bool, at time.Time) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	workflow, err := wr.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	workflow.ExecutionCount++

	if success {
		workflow.SuccessCount++
		workflow.LastExecutedAt = &at
		workflow.LastTriggeredAt = &at
	}

	return wr.store.write(workflowsCollection, workflow.ID, workflow)
}
