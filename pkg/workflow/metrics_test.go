package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/crewdesk/automation/pkg/mocks"
	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence/file"
	"github.com/crewdesk/automation/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsUpdater_RequiresAtomicIncrement(t *testing.T) {
	repo := &mocks.MockWorkflowRepository{}
	updater := workflow.NewMetricsUpdater(testLogger(), repo)

	err := updater.Record(context.Background(), "wf-1", true, time.Now())
	assert.ErrorIs(t, err, workflow.ErrAtomicIncrementUnavailable)

	repo.AssertNotCalled(t, "Save")
}

func TestMetricsUpdater_Record(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())

	wf := &models.Workflow{Name: "Invoice overdue", IsActive: true, Status: models.WorkflowStatusActive}
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	updater := workflow.NewMetricsUpdater(testLogger(), store.WorkflowRepository())
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, updater.Record(ctx, wf.ID, true, at))
	require.NoError(t, updater.Record(ctx, wf.ID, false, at.Add(time.Hour)))

	stored, err := store.WorkflowRepository().GetByID(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.ExecutionCount)
	assert.Equal(t, int64(1), stored.SuccessCount)
	require.NotNil(t, stored.LastExecutedAt)
	assert.True(t, at.Equal(*stored.LastExecutedAt))
}
