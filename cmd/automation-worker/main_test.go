package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crewdesk/automation/pkg/config"
	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence/file"
	"github.com/crewdesk/automation/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func captureConfig(t *testing.T, args ...string) (config.Engine, error) {
	t.Helper()

	var (
		loaded  config.Engine
		loadErr error
	)

	command := &cli.Command{
		Name:  "test",
		Flags: engineFlags(),
		Action: func(_ context.Context, command *cli.Command) error {
			loaded, loadErr = loadConfig(command)

			return nil
		},
	}

	require.NoError(t, command.Run(context.Background(), append([]string{"test"}, args...)))

	return loaded, loadErr
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "automation.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: file:///var/lib/automation
batch_size: 25
poll_interval: 1m
email:
  provider: log
  from_name: Cool Air
`), 0o600))

	engine, err := captureConfig(t, "--config", path, "--batch-size", "40", "--log-format", "json")
	require.NoError(t, err)

	assert.Equal(t, "file:///var/lib/automation", engine.DatabaseURL)
	assert.Equal(t, 40, engine.BatchSize)
	assert.Equal(t, time.Minute, engine.PollInterval)
	assert.Equal(t, "Cool Air", engine.Email.FromName)
	assert.Equal(t, "json", engine.LogFormat)
	assert.Equal(t, 3, engine.MaxRetries)
	assert.Contains(t, engine.WorkerID, "worker-")
}

func TestLoadConfig_Rejected(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown event bus", args: []string{"--event-bus", "carrier-pigeon"}},
		{name: "kafka without brokers", args: []string{"--event-bus", "kafka"}},
		{name: "twilio without credentials", args: []string{"--sms-provider", "twilio"}},
		{name: "bad sweep schedule", args: []string{"--sweep-schedule", "every tuesday"}},
		{name: "zero batch", args: []string{"--batch-size", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := captureConfig(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration rejected")
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := captureConfig(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

type fixture struct {
	dir   string
	store *file.Persistence
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()

	return &fixture{dir: dir, store: file.NewPersistence(dir)}
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := newRootCommand()
	root.Writer = &out

	full := append([]string{"automation-worker"}, args[0], "--database-url", "file://"+f.dir, "--log-level", "error")
	full = append(full, args[1:]...)

	err := root.Run(context.Background(), full)

	return out.String(), err
}

func (f *fixture) notifyWorkflow(t *testing.T) string {
	t.Helper()

	wf := testutil.NewWorkflow(
		[]*models.Step{testutil.TriggerStep(), testutil.NotificationStep("user-1", "Job finished")},
		testutil.WithName("Notify owner"),
	)
	require.NoError(t, f.store.WorkflowRepository().Save(context.Background(), wf))

	return wf.ID
}

func (f *fixture) enqueue(t *testing.T, workflowID string, createdAt time.Time) string {
	t.Helper()

	log := testutil.NewExecutionLog(workflowID, "job-1", testutil.WithCreatedAt(createdAt))
	require.NoError(t, f.store.ExecutionLogRepository().Create(context.Background(), log))

	return log.ID
}

func TestValidateCommand(t *testing.T) {
	f := newFixture(t)
	workflowID := f.notifyWorkflow(t)

	out, err := f.run(t, "validate", workflowID)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration: VALID")
	assert.Contains(t, out, "Workflow "+workflowID+": VALID (1 executable steps)")

	out, err = f.run(t, "validate", workflowID, "missing")
	require.ErrorIs(t, err, ErrInvalidWorkflows)
	assert.Contains(t, out, "Workflow missing: INVALID (Workflow not found)")
}

func TestProcessOnceCommand(t *testing.T) {
	f := newFixture(t)
	logID := f.enqueue(t, f.notifyWorkflow(t), time.Now().UTC())

	out, err := f.run(t, "process-once")
	require.NoError(t, err)
	assert.Contains(t, out, "Fetched 1: completed 1, failed 0")

	log, err := f.store.ExecutionLogRepository().GetByID(context.Background(), logID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, log.Status)

	notifications, err := f.store.NotificationRepository().(*file.NotificationRepository).ByUser("user-1")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "Job finished", notifications[0].Message)
}

func TestExpirePendingCommand(t *testing.T) {
	f := newFixture(t)
	workflowID := f.notifyWorkflow(t)
	stale := f.enqueue(t, workflowID, time.Now().UTC().Add(-3*time.Hour))
	fresh := f.enqueue(t, workflowID, time.Now().UTC())

	out, err := f.run(t, "expire-pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Expired 1 pending execution logs")

	log, err := f.store.ExecutionLogRepository().GetByID(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusExpired, log.Status)

	log, err = f.store.ExecutionLogRepository().GetByID(context.Background(), fresh)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, log.Status)
}
