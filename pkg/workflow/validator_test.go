package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crewdesk/automation/pkg/mocks"
	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/crewdesk/automation/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestValidator_NormalizesLegacyStepLocations(t *testing.T) {
	repo := &mocks.MockWorkflowRepository{}
	repo.On("GetByID", mock.Anything, "wf-legacy").Return(&models.Workflow{
		ID:       "wf-legacy",
		IsActive: true,
		Status:   models.WorkflowStatusActive,
		TemplateConfig: &models.StepContainer{Steps: []*models.Step{
			{Type: "trigger"},
			{Type: "action", Config: map[string]any{"action_type": "send_email", "subject": "Hi"}},
			{Type: "wait", Config: map[string]any{"delayValue": 1}},
			{Type: "unknown"},
		}},
	}, nil)

	validator := workflow.NewValidator(workflow.NewCache(repo, time.Minute))

	result, err := validator.Validate(context.Background(), "wf-legacy")
	require.NoError(t, err)
	require.True(t, result.IsValid)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, models.StepKindSendEmail, result.Steps[0].Kind)
	assert.Equal(t, models.StepKindDelay, result.Steps[1].Kind)
	assert.Equal(t, 1, result.Steps[1].Index)
}

func TestValidator_StoreErrorIsNotAValidationFailure(t *testing.T) {
	repo := &mocks.MockWorkflowRepository{}
	repo.On("GetByID", mock.Anything, "wf-1").Return(nil, errors.New("connection refused"))

	validator := workflow.NewValidator(workflow.NewCache(repo, time.Minute))

	result, err := validator.Validate(context.Background(), "wf-1")
	require.Error(t, err)
	assert.False(t, result.IsValid)
	assert.Nil(t, result.Error)
}

func TestValidator_NotFound(t *testing.T) {
	repo := &mocks.MockWorkflowRepository{}
	repo.On("GetByID", mock.Anything, "wf-1").
		Return(nil, persistence.NewWorkflowError("GetByID", "wf-1", persistence.ErrWorkflowNotFound))

	validator := workflow.NewValidator(workflow.NewCache(repo, time.Minute))

	result, err := validator.Validate(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.ErrorIs(t, result.Error, workflow.ErrWorkflowNotFound)
	assert.Equal(t, "Workflow not found", result.Error.Error())
}

func TestCache_TTL(t *testing.T) {
	repo := &mocks.MockWorkflowRepository{}
	repo.On("GetByID", mock.Anything, "wf-1").Return(&models.Workflow{ID: "wf-1"}, nil)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := workflow.NewCache(repo, 5*time.Minute)
	cache.SetClock(func() time.Time { return now })

	for range 3 {
		_, err := cache.Get(context.Background(), "wf-1")
		require.NoError(t, err)
	}

	repo.AssertNumberOfCalls(t, "GetByID", 1)
	assert.Equal(t, 1, cache.Size())

	now = now.Add(5 * time.Minute)

	_, err := cache.Get(context.Background(), "wf-1")
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetByID", 2)

	cache.Invalidate("wf-1")
	assert.Equal(t, 0, cache.Size())
}
