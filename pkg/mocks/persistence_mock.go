package mocks

import (
	"context"
	"time"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
// It deliberately has no IncrementMetrics method.
type MockWorkflowRepository struct {
	mock.Mock
}

var _ persistence.WorkflowRepository = (*MockWorkflowRepository)(nil)

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

// MockExecutionLogRepository is a mock implementation of persistence.ExecutionLogRepository interface.
type MockExecutionLogRepository struct {
	mock.Mock
}

var _ persistence.ExecutionLogRepository = (*MockExecutionLogRepository)(nil)

func (m *MockExecutionLogRepository) Create(ctx context.Context, log *models.ExecutionLog) error {
	args := m.Called(ctx, log)

	return args.Error(0)
}

func (m *MockExecutionLogRepository) GetByID(ctx context.Context, id string) (*models.ExecutionLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionLog), args.Error(1)
}

func (m *MockExecutionLogRepository) RunnableBatch(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionLog, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionLog), args.Error(1)
}

func (m *MockExecutionLogRepository) Claim(ctx context.Context, id string, from models.ExecutionStatus, startedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, from, startedAt)

	return args.Bool(0), args.Error(1)
}

func (m *MockExecutionLogRepository) Update(ctx context.Context, log *models.ExecutionLog) error {
	args := m.Called(ctx, log)

	return args.Error(0)
}

func (m *MockExecutionLogRepository) ExpirePending(ctx context.Context, olderThan time.Time, message string, at time.Time) (int64, error) {
	args := m.Called(ctx, olderThan, message, at)

	return args.Get(0).(int64), args.Error(1)
}

func (m *MockExecutionLogRepository) CountByStatus(ctx context.Context, status models.ExecutionStatus) (int64, error) {
	args := m.Called(ctx, status)

	return args.Get(0).(int64), args.Error(1)
}

func (m *MockExecutionLogRepository) CountFailedSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)

	return args.Get(0).(int64), args.Error(1)
}

func (m *MockExecutionLogRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error) {
	args := m.Called(ctx, workflowID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionLog), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	workflowRepo     *MockWorkflowRepository
	executionLogRepo *MockExecutionLogRepository
}

// NewMockPersistence creates a new MockPersistence with mock workflow and execution log repositories.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		workflowRepo:     &MockWorkflowRepository{},
		executionLogRepo: &MockExecutionLogRepository{},
	}
}

func (m *MockPersistence) GetMockWorkflowRepository() *MockWorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) GetMockExecutionLogRepository() *MockExecutionLogRepository {
	return m.executionLogRepo
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) ExecutionLogRepository() persistence.ExecutionLogRepository {
	return m.executionLogRepo
}

func (m *MockPersistence) NotificationRepository() persistence.NotificationRepository {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(persistence.NotificationRepository)
}

func (m *MockPersistence) TaskRepository() persistence.TaskRepository {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(persistence.TaskRepository)
}

func (m *MockPersistence) EntityRepository() persistence.EntityRepository {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(persistence.EntityRepository)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
