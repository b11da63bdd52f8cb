package file_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/crewdesk/automation/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_HealthCheck(t *testing.T) {
	p := file.NewPersistence("file://" + t.TempDir())
	assert.NoError(t, p.HealthCheck(context.Background()))

	missing := file.NewPersistence(t.TempDir() + "/missing")
	assert.Error(t, missing.HealthCheck(context.Background()))
}

func TestWorkflowRepository_SaveAndMetrics(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	workflow := &models.Workflow{Name: "Follow up", IsActive: true, Status: models.WorkflowStatusActive}
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))
	require.NotEmpty(t, workflow.ID)

	incrementer, ok := p.WorkflowRepository().(persistence.MetricsIncrementer)
	require.True(t, ok)

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)

		go func(success bool) {
			defer wg.Done()

			assert.NoError(t, incrementer.IncrementMetrics(ctx, workflow.ID, success, at))
		}(i%2 == 0)
	}

	wg.Wait()

	stored, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored.ExecutionCount)
	assert.Equal(t, int64(5), stored.SuccessCount)
	require.NotNil(t, stored.LastExecutedAt)
	assert.True(t, at.Equal(*stored.LastExecutedAt))

	_, err = p.WorkflowRepository().GetByID(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = incrementer.IncrementMetrics(ctx, "missing", true, at)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestExecutionLogRepository_RunnableBatch(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())
	logs := p.ExecutionLogRepository()

	now := time.Now().UTC()
	due := now.Add(-time.Second)
	later := now.Add(time.Hour)

	fixtures := []*models.ExecutionLog{
		{ID: "c", WorkflowID: "wf", Status: models.ExecutionStatusPending, CreatedAt: now.Add(-1 * time.Minute)},
		{ID: "a", WorkflowID: "wf", Status: models.ExecutionStatusPending, CreatedAt: now.Add(-3 * time.Minute)},
		{ID: "b", WorkflowID: "wf", Status: models.ExecutionStatusWaiting, CreatedAt: now.Add(-2 * time.Minute),
			Details: models.ExecutionDetails{ResumeAt: &due}},
		{ID: "d", WorkflowID: "wf", Status: models.ExecutionStatusWaiting, CreatedAt: now.Add(-4 * time.Minute),
			Details: models.ExecutionDetails{ResumeAt: &later}},
		{ID: "e", WorkflowID: "wf", Status: models.ExecutionStatusCompleted, CreatedAt: now.Add(-5 * time.Minute)},
	}

	for _, log := range fixtures {
		require.NoError(t, logs.Create(ctx, log))
	}

	batch, err := logs.RunnableBatch(ctx, now, 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(batch))
	for _, log := range batch {
		ids = append(ids, log.ID)
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids)

	limited, err := logs.RunnableBatch(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestExecutionLogRepository_ClaimAndTerminal(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())
	logs := p.ExecutionLogRepository()

	log := &models.ExecutionLog{ID: "log-1", WorkflowID: "wf"}
	require.NoError(t, logs.Create(ctx, log))
	assert.Equal(t, models.ExecutionStatusPending, log.Status)

	first := time.Now().UTC()

	claimed, err := logs.Claim(ctx, "log-1", models.ExecutionStatusPending, first)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = logs.Claim(ctx, "log-1", models.ExecutionStatusPending, first.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, claimed)

	stored, err := logs.GetByID(ctx, "log-1")
	require.NoError(t, err)
	require.NotNil(t, stored.StartedAt)
	assert.True(t, first.Equal(*stored.StartedAt))

	stored.Status = models.ExecutionStatusSkipped
	require.NoError(t, logs.Update(ctx, stored))

	stored.Status = models.ExecutionStatusPending
	err = logs.Update(ctx, stored)
	assert.True(t, persistence.IsExecutionLogTerminal(err))

	_, err = logs.GetByID(ctx, "nope")
	assert.True(t, persistence.IsExecutionLogNotFound(err))
}

func TestExecutionLogRepository_ExpirePending(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())
	logs := p.ExecutionLogRepository()

	now := time.Now().UTC()

	require.NoError(t, logs.Create(ctx, &models.ExecutionLog{ID: "old", WorkflowID: "wf", CreatedAt: now.Add(-90 * time.Minute)}))
	require.NoError(t, logs.Create(ctx, &models.ExecutionLog{ID: "new", WorkflowID: "wf", CreatedAt: now.Add(-30 * time.Minute)}))
	require.NoError(t, logs.Create(ctx, &models.ExecutionLog{
		ID: "done", WorkflowID: "wf", Status: models.ExecutionStatusCompleted, CreatedAt: now.Add(-3 * time.Hour),
	}))
	startedAt := now.Add(-10 * time.Minute)
	require.NoError(t, logs.Create(ctx, &models.ExecutionLog{
		ID: "requeued", WorkflowID: "wf", Status: models.ExecutionStatusPending, CreatedAt: now.Add(-3 * time.Hour), StartedAt: &startedAt,
	}))

	count, err := logs.ExpirePending(ctx, now.Add(-time.Hour), "too old", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	old, err := logs.GetByID(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusExpired, old.Status)
	assert.Equal(t, "too old", old.ErrorMessage)

	done, err := logs.GetByID(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, done.Status)

	requeued, err := logs.GetByID(ctx, "requeued")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, requeued.Status)

	pending, err := logs.CountByStatus(ctx, models.ExecutionStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)
}

func TestEntityRepository(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	require.NoError(t, p.Entities().SaveClient(&models.Client{ID: "client-1", Name: "Ada Lovelace"}))
	require.NoError(t, p.Entities().SaveCompany(&models.Company{OrganizationID: "org-1", Name: "Cool Air", Timezone: "America/Chicago"}))

	client, err := p.EntityRepository().Client(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", client.Name)

	company, err := p.EntityRepository().Company(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", company.Timezone)

	_, err = p.EntityRepository().Job(ctx, "job-x")
	assert.True(t, persistence.IsEntityNotFound(err))

	_, err = p.EntityRepository().Job(ctx, "../etc/passwd")
	require.Error(t, err)
	assert.False(t, persistence.IsEntityNotFound(err))
}
