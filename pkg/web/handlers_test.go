package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence/file"
	"github.com/crewdesk/automation/pkg/senders/logsender"
	"github.com/crewdesk/automation/pkg/template"
	"github.com/crewdesk/automation/pkg/testutil"
	"github.com/crewdesk/automation/pkg/web"
	"github.com/crewdesk/automation/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app    *fiber.App
	store  *file.Persistence
	sender *logsender.Sender
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := file.NewPersistence(t.TempDir())

	entities := store.Entities()
	require.NoError(t, entities.SaveClient(&models.Client{
		ID: "client-1", Name: "Jane Doe", FirstName: "Jane", Phone: "+15551234567", Email: "jane@example.com",
	}))
	require.NoError(t, entities.SaveJob(&models.Job{
		ID: "job-1", Number: "J-100", Title: "AC tune-up", Status: "completed", ClientID: "client-1",
	}))

	resolver, err := template.NewResolver(logger, store.EntityRepository(), "America/New_York")
	require.NoError(t, err)

	schemas, err := workflow.NewStepSchemas()
	require.NoError(t, err)

	sender := logsender.New(logger)
	interpreter := workflow.NewInterpreter(
		logger, sender, sender,
		store.NotificationRepository(), store.TaskRepository(),
		schemas, nil, workflow.InterpreterOptions{},
	)

	validator := workflow.NewValidator(workflow.NewCache(store.WorkflowRepository(), time.Minute))
	poller := workflow.NewPoller(logger, workflow.Dependencies{
		Logs:        store.ExecutionLogRepository(),
		Validator:   validator,
		Resolver:    resolver,
		Interpreter: interpreter,
		Metrics:     workflow.NewMetricsUpdater(logger, store.WorkflowRepository()),
	}, workflow.DefaultOptions())

	server := web.NewServer(logger, poller, validator, store)

	return &testEnv{app: server.App(), store: store, sender: sender}
}

func (e *testEnv) saveWorkflow(t *testing.T, steps ...*models.Step) string {
	t.Helper()

	wf := testutil.NewWorkflow(steps)
	require.NoError(t, e.store.WorkflowRepository().Save(context.Background(), wf))

	return wf.ID
}

func (e *testEnv) do(t *testing.T, method, target string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func TestServer_Probes(t *testing.T) {
	env := setupTestApp(t)

	status, body := env.do(t, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", string(body))

	status, _ = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	env := setupTestApp(t)
	workflowID := env.saveWorkflow(t, testutil.SMSStep("hi"))

	status, _ := env.do(t, http.MethodPost, "/execution-logs", web.EnqueueRequest{
		WorkflowID: workflowID, TriggerType: "job_status_changed", EntityID: "job-1", EntityType: "job",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)

	var response struct {
		Status string                `json:"status"`
		Poller workflow.HealthStatus `json:"poller"`
	}
	require.NoError(t, json.Unmarshal(body, &response))

	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, int64(1), response.Poller.PendingCount)
	assert.False(t, response.Poller.IsProcessing)
}

func TestAPIHandlers_EnqueueExecution(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{
			name:           "invalid json",
			body:           "not an object",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing entity",
			body:           web.EnqueueRequest{WorkflowID: "wf-1", TriggerType: "job_status_changed"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing workflow id",
			body:           web.EnqueueRequest{TriggerType: "job_status_changed", EntityID: "job-1", EntityType: "job"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "valid trigger",
			body: web.EnqueueRequest{
				WorkflowID:  "wf-1",
				TriggerType: "job_status_changed",
				EntityID:    "job-1",
				EntityType:  "job",
				NewStatus:   "completed",
			},
			expectedStatus: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestApp(t)

			status, body := env.do(t, http.MethodPost, "/execution-logs", tt.body)
			assert.Equal(t, tt.expectedStatus, status, string(body))
		})
	}
}

func TestAPIHandlers_EnqueueExecution_KeepsEntityFields(t *testing.T) {
	env := setupTestApp(t)

	status, body := env.do(t, http.MethodPost, "/execution-logs", web.EnqueueRequest{
		WorkflowID:  "wf-1",
		TriggerType: "job_status_changed",
		EntityID:    "job-1",
		EntityType:  "job",
		NewStatus:   "completed",
		Data:        map[string]any{"entity_id": "other", "old_status": "scheduled"},
	})
	require.Equal(t, http.StatusCreated, status)

	var created models.ExecutionLog
	require.NoError(t, json.Unmarshal(body, &created))

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.ExecutionStatusPending, created.Status)
	assert.Equal(t, "job-1", created.TriggerData.EntityID())
	assert.Equal(t, "completed", created.TriggerData.NewStatus())
	assert.Equal(t, "scheduled", created.TriggerData.String("old_status"))

	stored, err := env.store.ExecutionLogRepository().GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", stored.WorkflowID)
}

func TestAPIHandlers_GetExecutionLog(t *testing.T) {
	env := setupTestApp(t)

	log := testutil.NewExecutionLog("wf-1", "job-1")
	require.NoError(t, env.store.ExecutionLogRepository().Create(context.Background(), log))

	status, body := env.do(t, http.MethodGet, "/execution-logs/"+log.ID, nil)
	require.Equal(t, http.StatusOK, status)

	var fetched models.ExecutionLog
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, log.ID, fetched.ID)

	status, body = env.do(t, http.MethodGet, "/execution-logs/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "execution_log_not_found", problem["type"])
}

func TestAPIHandlers_Process(t *testing.T) {
	env := setupTestApp(t)
	workflowID := env.saveWorkflow(t, testutil.SMSStep("Hi {{client_first_name}}, {{job_title}} is done."))

	status, body := env.do(t, http.MethodPost, "/execution-logs", web.EnqueueRequest{
		WorkflowID: workflowID, TriggerType: "job_status_changed", EntityID: "job-1", EntityType: "job",
	})
	require.Equal(t, http.StatusCreated, status)

	var created models.ExecutionLog
	require.NoError(t, json.Unmarshal(body, &created))

	status, body = env.do(t, http.MethodPost, "/process", nil)
	require.Equal(t, http.StatusOK, status)

	var result workflow.PassResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.Completed)

	stored, err := env.store.ExecutionLogRepository().GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)

	sms, emails := env.sender.Counts()
	assert.Equal(t, 1, sms)
	assert.Equal(t, 0, emails)
}

func TestAPIHandlers_ExpirePending(t *testing.T) {
	env := setupTestApp(t)

	stale := testutil.NewExecutionLog("wf-1", "job-1", testutil.WithCreatedAt(time.Now().UTC().Add(-2*time.Hour)))
	require.NoError(t, env.store.ExecutionLogRepository().Create(context.Background(), stale))

	status, body := env.do(t, http.MethodPost, "/maintenance/expire-pending", nil)
	require.Equal(t, http.StatusOK, status)

	var response web.ExpireResponse
	require.NoError(t, json.Unmarshal(body, &response))
	assert.Equal(t, int64(1), response.Expired)

	stored, err := env.store.ExecutionLogRepository().GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusExpired, stored.Status)
}

func TestAPIHandlers_ValidateWorkflow(t *testing.T) {
	env := setupTestApp(t)
	valid := env.saveWorkflow(t, testutil.SMSStep("hi"), testutil.TriggerStep())
	empty := env.saveWorkflow(t)

	tests := []struct {
		name       string
		workflowID string
		expected   web.ValidationResponse
	}{
		{
			name:       "runnable",
			workflowID: valid,
			expected:   web.ValidationResponse{WorkflowID: valid, Valid: true, Steps: 1},
		},
		{
			name:       "no actions",
			workflowID: empty,
			expected:   web.ValidationResponse{WorkflowID: empty, Error: "Workflow has no actions"},
		},
		{
			name:       "missing",
			workflowID: "missing",
			expected:   web.ValidationResponse{WorkflowID: "missing", Error: "Workflow not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodGet, "/workflows/"+tt.workflowID+"/validate", nil)
			require.Equal(t, http.StatusOK, status)

			var response web.ValidationResponse
			require.NoError(t, json.Unmarshal(body, &response))
			assert.Equal(t, tt.expected, response)
		})
	}
}

func TestAPIHandlers_ListWorkflowExecutionLogs(t *testing.T) {
	env := setupTestApp(t)

	for range 3 {
		require.NoError(t, env.store.ExecutionLogRepository().Create(context.Background(), testutil.NewExecutionLog("wf-1", "job-1")))
	}

	status, body := env.do(t, http.MethodGet, "/workflows/wf-1/execution-logs?limit=2", nil)
	require.Equal(t, http.StatusOK, status)

	var response struct {
		ExecutionLogs []models.ExecutionLog `json:"execution_logs"`
		Limit         int                   `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(body, &response))
	assert.Len(t, response.ExecutionLogs, 2)
	assert.Equal(t, 2, response.Limit)

	status, _ = env.do(t, http.MethodGet, "/workflows/wf-1/execution-logs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
