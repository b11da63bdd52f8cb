package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crewdesk/automation/pkg/mocks"
	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence/file"
	"github.com/crewdesk/automation/pkg/senders"
	"github.com/crewdesk/automation/pkg/template"
	"github.com/crewdesk/automation/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newInterpreter(t *testing.T, options workflow.InterpreterOptions) (*workflow.Interpreter, *mocks.MockSMSSender, *mocks.MockEmailSender, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	schemas, err := workflow.NewStepSchemas()
	require.NoError(t, err)

	sms := &mocks.MockSMSSender{}
	email := &mocks.MockEmailSender{}

	interpreter := workflow.NewInterpreter(testLogger(), sms, email,
		store.NotificationRepository(), store.TaskRepository(), schemas, nil, options)

	return interpreter, sms, email, store
}

func execution(steps ...*models.Step) *workflow.Execution {
	return &workflow.Execution{
		Log: &models.ExecutionLog{
			ID:          "log-1",
			WorkflowID:  "wf-1",
			TriggerData: models.TriggerData{"entity_id": "inv-1", "entity_type": "invoice"},
			Status:      models.ExecutionStatusRunning,
		},
		Workflow: &models.Workflow{ID: "wf-1", OrganizationID: "org-1", Name: "Invoice reminder"},
		Steps:    models.NormalizeSteps(steps),
		Variables: template.Variables{
			"client_id":             "client-1",
			"client_first_name":     "Jane",
			"client_email":          "jane@example.com",
			"invoice_number":        "INV-7",
			"amount":                "$129.50",
			"company_owner_user_id": "user-owner",
			"manager_id":            "user-manager",
		},
	}
}

func TestInterpreter_SendEmail(t *testing.T) {
	interpreter, _, email, _ := newInterpreter(t, workflow.InterpreterOptions{})

	email.On("SendEmail", mock.Anything, senders.EmailMessage{
		To:      "jane@example.com",
		Subject: "Invoice INV-7",
		HTML:    "<p>Hi Jane,</p><p>Your balance is <b>$129.50</b>.</p>",
		Text:    "Hi Jane,\nYour balance is $129.50.",
		Correlation: senders.Correlation{
			ClientID:       "client-1",
			WorkflowID:     "wf-1",
			ExecutionLogID: "log-1",
		},
	}).Return(nil).Once()

	exec := execution(&models.Step{Type: "send_email", Config: map[string]any{
		"subject": "Invoice {{invoice_number}}",
		"body":    "<p>Hi {{client_first_name}},</p><p>Your balance is <b>{{amount}}</b>.</p>",
	}})

	outcome, err := interpreter.Run(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.StepsExecuted)

	email.AssertExpectations(t)
}

func TestInterpreter_RecipientOverride(t *testing.T) {
	interpreter, sms, _, _ := newInterpreter(t, workflow.InterpreterOptions{})

	sms.On("SendSMS", mock.Anything, "+15559998888", "Paid?", mock.Anything).Return(nil).Once()

	exec := execution(&models.Step{Type: "sms", Config: map[string]any{"to": "{{office_phone}}", "message": "Paid?"}})
	exec.Variables["office_phone"] = "+15559998888"

	_, err := interpreter.Run(context.Background(), exec)
	require.NoError(t, err)

	sms.AssertExpectations(t)
}

func TestInterpreter_MissingRecipientAndSchemaErrorsAreStepErrors(t *testing.T) {
	interpreter, _, _, store := newInterpreter(t, workflow.InterpreterOptions{})

	exec := execution(
		&models.Step{Type: "send_sms", Config: map[string]any{"message": "Hi"}},
		&models.Step{Type: "create_task", Config: map[string]any{}},
		&models.Step{Type: "notification", Config: map[string]any{"message": "Invoice {{invoice_number}} is overdue", "userId": "{{manager_id}}"}},
	)

	_, err := interpreter.Run(context.Background(), exec)

	var runErr *workflow.RunError
	require.ErrorAs(t, err, &runErr)
	require.Len(t, runErr.Steps, 2)
	assert.ErrorIs(t, runErr.Steps[0], workflow.ErrRecipientMissing)
	assert.Equal(t, models.StepKindCreateTask, runErr.Steps[1].Kind)
	assert.Contains(t, runErr.Steps[1].Error(), "title")

	details := exec.Log.Details
	assert.Len(t, details.StepErrors, 2)
	assert.Equal(t, []int{2}, details.CompletedSteps)

	notifications, err := store.NotificationRepository().(*file.NotificationRepository).ByUser("user-manager")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "Invoice reminder", notifications[0].Title)
	assert.Equal(t, "Invoice INV-7 is overdue", notifications[0].Message)
	assert.Equal(t, "invoice", notifications[0].EntityType)
	assert.Equal(t, "org-1", notifications[0].OrganizationID)
}

func TestInterpreter_InlineDelay(t *testing.T) {
	interpreter, _, _, _ := newInterpreter(t, workflow.InterpreterOptions{InlineDelayThreshold: time.Second})

	exec := execution(delayStep(1, "seconds"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := interpreter.Run(ctx, exec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, workflow.Transient, workflow.Classify(err))

	exec = execution(delayStep("0.01", "seconds"))

	outcome, err := interpreter.Run(context.Background(), exec)
	require.NoError(t, err)
	assert.False(t, outcome.Suspended)
	assert.Equal(t, 1, outcome.StepsExecuted)
}

func TestInterpreter_SkipsCompletedSteps(t *testing.T) {
	interpreter, sms, _, _ := newInterpreter(t, workflow.InterpreterOptions{})

	sms.On("SendSMS", mock.Anything, mock.Anything, "second", mock.Anything).Return(nil).Once()

	exec := execution(
		&models.Step{Type: "send_sms", Config: map[string]any{"message": "first", "to": "+1"}},
		&models.Step{Type: "send_sms", Config: map[string]any{"message": "second", "to": "+1"}},
	)
	exec.Log.Details.CompletedSteps = []int{0}

	outcome, err := interpreter.Run(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.StepsExecuted)
	assert.Equal(t, []int{0, 1}, exec.Log.Details.CompletedSteps)

	sms.AssertExpectations(t)
}

func TestDelayDuration(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]any
		expected time.Duration
	}{
		{"seconds", map[string]any{"delayValue": 30, "delayUnit": "seconds"}, 30 * time.Second},
		{"minutes", map[string]any{"delayValue": "5", "delayUnit": "minutes"}, 5 * time.Minute},
		{"hours", map[string]any{"delayValue": 2, "delayUnit": "Hours"}, 2 * time.Hour},
		{"days", map[string]any{"delayValue": 1.5, "delayUnit": "days"}, 36 * time.Hour},
		{"unknown unit defaults to minutes", map[string]any{"delayValue": 3, "delayUnit": "fortnights"}, 3 * time.Minute},
		{"unparsable value", map[string]any{"delayValue": "soon", "delayUnit": "hours"}, 0},
		{"missing value", map[string]any{"delayUnit": "hours"}, 0},
		{"negative value", map[string]any{"delayValue": -1, "delayUnit": "hours"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, workflow.DelayDuration(tt.config))
		})
	}
}
