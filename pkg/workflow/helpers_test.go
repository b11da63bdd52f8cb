package workflow_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/crewdesk/automation/pkg/mocks"
	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence/file"
	"github.com/crewdesk/automation/pkg/template"
	"github.com/crewdesk/automation/pkg/testutil"
	"github.com/crewdesk/automation/pkg/workflow"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type harness struct {
	store       *file.Persistence
	sms         *mocks.MockSMSSender
	email       *mocks.MockEmailSender
	cache       *workflow.Cache
	interpreter *workflow.Interpreter
	poller      *workflow.Poller
	clock       *clock
}

func newHarness(t *testing.T, configure ...func(*workflow.Dependencies)) *harness {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	entities := store.Entities()

	require.NoError(t, entities.SaveCompany(&models.Company{
		OrganizationID: "org-1", Name: "Cool Air", OwnerUserID: "user-owner", Timezone: "America/New_York",
	}))
	require.NoError(t, entities.SaveClient(&models.Client{
		ID: "client-1", Name: "Jane Doe", FirstName: "Jane", Phone: "+15551234567", Email: "jane@example.com",
	}))
	require.NoError(t, entities.SaveClient(&models.Client{ID: "client-2", Name: "No Contact"}))
	require.NoError(t, entities.SaveJob(&models.Job{
		ID: "job-1", Number: "J-100", Title: "AC tune-up", Status: "completed", ClientID: "client-1",
	}))
	require.NoError(t, entities.SaveJob(&models.Job{ID: "job-2", Title: "Furnace", ClientID: "client-2"}))

	c := &clock{now: time.Now().UTC()}

	resolver, err := template.NewResolver(testLogger(), store.EntityRepository(), "America/New_York")
	require.NoError(t, err)
	resolver.WithClock(c.Now)

	schemas, err := workflow.NewStepSchemas()
	require.NoError(t, err)

	sms := &mocks.MockSMSSender{}
	email := &mocks.MockEmailSender{}

	interpreter := workflow.NewInterpreter(
		testLogger(), sms, email,
		store.NotificationRepository(), store.TaskRepository(),
		schemas, nil, workflow.InterpreterOptions{},
	)
	interpreter.SetClock(c.Now)

	cache := workflow.NewCache(store.WorkflowRepository(), time.Minute)

	deps := workflow.Dependencies{
		Logs:        store.ExecutionLogRepository(),
		Validator:   workflow.NewValidator(cache),
		Resolver:    resolver,
		Interpreter: interpreter,
		Metrics:     workflow.NewMetricsUpdater(testLogger(), store.WorkflowRepository()),
	}
	for _, fn := range configure {
		fn(&deps)
	}

	poller := workflow.NewPoller(testLogger(), deps, workflow.DefaultOptions())
	poller.SetClock(c.Now)

	return &harness{
		store:       store,
		sms:         sms,
		email:       email,
		cache:       cache,
		interpreter: interpreter,
		poller:      poller,
		clock:       c,
	}
}

func (h *harness) workflow(t *testing.T, steps ...*models.Step) *models.Workflow {
	t.Helper()

	wf := testutil.NewWorkflow(steps)
	require.NoError(t, h.store.WorkflowRepository().Save(context.Background(), wf))

	return wf
}

func (h *harness) enqueue(t *testing.T, workflowID, jobID string, createdAt time.Time) *models.ExecutionLog {
	t.Helper()

	log := testutil.NewExecutionLog(workflowID, jobID, testutil.WithCreatedAt(createdAt))
	require.NoError(t, h.store.ExecutionLogRepository().Create(context.Background(), log))

	return log
}

func (h *harness) reload(t *testing.T, id string) *models.ExecutionLog {
	t.Helper()

	log, err := h.store.ExecutionLogRepository().GetByID(context.Background(), id)
	require.NoError(t, err)

	return log
}

var (
	smsStep   = testutil.SMSStep
	delayStep = testutil.DelayStep
)
