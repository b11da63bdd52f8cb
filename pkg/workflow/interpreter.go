package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/otelhelper"
	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/crewdesk/automation/pkg/senders"
	"github.com/crewdesk/automation/pkg/template"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Execution is one attempt to run a validated workflow for an execution log.
type Execution struct {
	Log       *models.ExecutionLog
	Workflow  *models.Workflow
	Steps     []models.ExecutableStep
	Variables template.Variables
	// Resumed is set when the attempt continues a log that was waiting on a delay.
	Resumed bool
}

// Outcome summarizes an attempt that did not fail.
type Outcome struct {
	StepsExecuted int
	Suspended     bool
	ResumeAt      time.Time
	ResumeStep    int
}

type InterpreterOptions struct {
	// InlineDelayThreshold is the longest delay slept in place. Longer delays suspend the run.
	InlineDelayThreshold time.Duration
}

// Interpreter executes normalized steps in order.
type Interpreter struct {
	sms           senders.SMSSender
	email         senders.EmailSender
	notifications persistence.NotificationRepository
	tasks         persistence.TaskRepository
	schemas       *StepSchemas
	tracer        trace.Tracer
	logger        *slog.Logger
	options       InterpreterOptions
	now           func() time.Time
}

func NewInterpreter(
	logger *slog.Logger,
	sms senders.SMSSender,
	email senders.EmailSender,
	notifications persistence.NotificationRepository,
	tasks persistence.TaskRepository,
	schemas *StepSchemas,
	tracer trace.Tracer,
	options InterpreterOptions,
) *Interpreter {
	if tracer == nil {
		tracer = otelhelper.NewNoopTracer("automation-worker")
	}

	return &Interpreter{
		sms:           sms,
		email:         email,
		notifications: notifications,
		tasks:         tasks,
		schemas:       schemas,
		tracer:        tracer,
		logger:        logger.With("module", "step_interpreter"),
		options:       options,
		now:           time.Now,
	}
}

// Run executes the steps of exec in order, starting at the log's resume step and skipping
// steps already completed by an earlier attempt. A failing step never stops the steps after
// it; once the list is exhausted the attempt fails with a RunError if any step failed.
// A delay longer than the inline threshold suspends the run instead.
func (i *Interpreter) Run(ctx context.Context, exec *Execution) (Outcome, error) {
	details := &exec.Log.Details

	var failures []*StepError

	if exec.Resumed {
		for _, prior := range details.StepErrors {
			failures = append(failures, &StepError{Index: prior.Index, Kind: prior.Kind, Err: errors.New(prior.Error)})
		}
	} else {
		details.StepErrors = nil
	}

	start := min(max(details.ResumeStep, 0), len(exec.Steps))
	details.ResumeStep = 0
	details.ResumeAt = nil

	logger := i.logger.With("execution_log_id", exec.Log.ID, "workflow_id", exec.Log.WorkflowID)

	var outcome Outcome

	for _, step := range exec.Steps[start:] {
		if details.IsStepCompleted(step.Index) {
			continue
		}

		resumeAt, err := i.runStep(ctx, exec, step)
		if err != nil {
			stepErr := &StepError{Index: step.Index, Kind: step.Kind, Err: err}
			failures = append(failures, stepErr)
			details.StepErrors = append(details.StepErrors, models.StepFailure{
				Index: step.Index,
				Kind:  step.Kind,
				Error: err.Error(),
				At:    i.now().UTC(),
			})

			logger.ErrorContext(ctx, "step failed", "step_index", step.Index, "step_kind", step.Kind, "error", err)

			continue
		}

		details.MarkStepCompleted(step.Index)
		outcome.StepsExecuted++

		if resumeAt != nil {
			details.ResumeAt = resumeAt
			details.ResumeStep = step.Index + 1

			outcome.Suspended = true
			outcome.ResumeAt = *resumeAt
			outcome.ResumeStep = details.ResumeStep

			return outcome, nil
		}
	}

	if len(failures) > 0 {
		return outcome, &RunError{Steps: failures}
	}

	return outcome, nil
}

func (i *Interpreter) runStep(ctx context.Context, exec *Execution, step models.ExecutableStep) (*time.Time, error) {
	ctx, span := otelhelper.StartSpan(ctx, i.tracer, "workflow.step",
		attribute.Int(otelhelper.StepIndexKey, step.Index),
		attribute.String(otelhelper.StepKindKey, string(step.Kind)),
		attribute.String(otelhelper.ExecutionLogIDKey, exec.Log.ID),
	)
	defer span.End()

	resumeAt, err := i.dispatch(ctx, exec, step)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return resumeAt, err
}

func (i *Interpreter) dispatch(ctx context.Context, exec *Execution, step models.ExecutableStep) (*time.Time, error) {
	if i.schemas != nil {
		err := i.schemas.Validate(step)
		if err != nil {
			return nil, err
		}
	}

	switch step.Kind {
	case models.StepKindSendSMS:
		return nil, i.sendSMS(ctx, exec, step)
	case models.StepKindSendEmail:
		return nil, i.sendEmail(ctx, exec, step)
	case models.StepKindNotification:
		return nil, i.notify(ctx, exec, step)
	case models.StepKindCreateTask:
		return nil, i.createTask(ctx, exec, step)
	case models.StepKindDelay:
		return i.delay(ctx, step)
	case models.StepKindCondition, models.StepKindFilter:
		i.evaluate(ctx, exec, step)

		return nil, nil
	case models.StepKindUnknown, models.StepKindTrigger:
	}

	i.logger.WarnContext(ctx, "skipping step of unknown kind", "step_index", step.Index, "step_kind", step.Kind)

	return nil, nil
}

func (i *Interpreter) correlation(exec *Execution) senders.Correlation {
	return senders.Correlation{
		ClientID:       exec.Variables["client_id"],
		JobID:          exec.Variables["job_id"],
		WorkflowID:     exec.Log.WorkflowID,
		ExecutionLogID: exec.Log.ID,
	}
}

// recipient renders the configured address and falls back to the context variable.
func recipient(config map[string]any, vars template.Variables, fallback string) string {
	to := strings.TrimSpace(template.Render(cast.ToString(config["to"]), vars))
	if to == "" || template.HasPlaceholders(to) {
		return vars[fallback]
	}

	return to
}

func (i *Interpreter) sendSMS(ctx context.Context, exec *Execution, step models.ExecutableStep) error {
	phone := recipient(step.Config, exec.Variables, "client_phone")
	if phone == "" {
		return fmt.Errorf("%w: no phone number on file", ErrRecipientMissing)
	}

	message := template.Render(cast.ToString(step.Config["message"]), exec.Variables)

	return i.sms.SendSMS(ctx, phone, message, i.correlation(exec))
}

func (i *Interpreter) sendEmail(ctx context.Context, exec *Execution, step models.ExecutableStep) error {
	to := recipient(step.Config, exec.Variables, "client_email")
	if to == "" {
		return fmt.Errorf("%w: no email address on file", ErrRecipientMissing)
	}

	body := cast.ToString(step.Config["html"])
	if body == "" {
		body = cast.ToString(step.Config["body"])
	}

	html := template.Render(body, exec.Variables)

	return i.email.SendEmail(ctx, senders.EmailMessage{
		To:          to,
		Subject:     template.Render(cast.ToString(step.Config["subject"]), exec.Variables),
		HTML:        html,
		Text:        senders.PlainText(html),
		Correlation: i.correlation(exec),
	})
}

func organizationOf(exec *Execution) string {
	if exec.Log.OrganizationID != "" {
		return exec.Log.OrganizationID
	}

	return exec.Workflow.OrganizationID
}

func (i *Interpreter) notify(ctx context.Context, exec *Execution, step models.ExecutableStep) error {
	userID := template.Render(cast.ToString(step.Config["userId"]), exec.Variables)
	if userID == "" || template.HasPlaceholders(userID) {
		userID = exec.Variables["company_owner_user_id"]
	}

	if userID == "" {
		return fmt.Errorf("%w: no user to notify", ErrRecipientMissing)
	}

	title := template.Render(cast.ToString(step.Config["title"]), exec.Variables)
	if title == "" {
		title = exec.Workflow.Name
	}

	err := i.notifications.Insert(ctx, &models.Notification{
		UserID:         userID,
		OrganizationID: organizationOf(exec),
		Title:          title,
		Message:        template.Render(cast.ToString(step.Config["message"]), exec.Variables),
		EntityType:     exec.Log.TriggerData.EntityType(),
		EntityID:       exec.Log.TriggerData.EntityID(),
		CreatedAt:      i.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

func (i *Interpreter) createTask(ctx context.Context, exec *Execution, step models.ExecutableStep) error {
	now := i.now().UTC()

	task := &models.Task{
		OrganizationID:    organizationOf(exec),
		Title:             template.Render(cast.ToString(step.Config["title"]), exec.Variables),
		Description:       template.Render(cast.ToString(step.Config["description"]), exec.Variables),
		Status:            "pending",
		JobID:             exec.Variables["job_id"],
		ClientID:          exec.Variables["client_id"],
		CreatedByWorkflow: exec.Log.WorkflowID,
		CreatedAt:         now,
	}

	if raw, ok := step.Config["dueInDays"]; ok {
		days, err := cast.ToIntE(raw)
		if err == nil && days >= 0 {
			due := now.AddDate(0, 0, days)
			task.DueAt = &due
		}
	}

	err := i.tasks.Insert(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// DelayDuration converts delayValue and delayUnit into a duration. Unknown units count as
// minutes; values that are not numbers yield zero.
func DelayDuration(config map[string]any) time.Duration {
	value, err := cast.ToFloat64E(config["delayValue"])
	if err != nil || value <= 0 {
		return 0
	}

	var unit time.Duration

	switch strings.ToLower(strings.TrimSpace(cast.ToString(config["delayUnit"]))) {
	case "second", "seconds":
		unit = time.Second
	case "hour", "hours":
		unit = time.Hour
	case "day", "days":
		unit = 24 * time.Hour
	default:
		unit = time.Minute
	}

	return time.Duration(value * float64(unit))
}

func (i *Interpreter) delay(ctx context.Context, step models.ExecutableStep) (*time.Time, error) {
	duration := DelayDuration(step.Config)
	if duration == 0 {
		return nil, nil
	}

	if duration > i.options.InlineDelayThreshold {
		resumeAt := i.now().UTC().Add(duration)

		return &resumeAt, nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("delay interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil, nil
	}
}

func (i *Interpreter) evaluate(ctx context.Context, exec *Execution, step models.ExecutableStep) {
	condition := conditionFromConfig(step.Config)
	result := condition.Evaluate(exec.Variables)

	key := step.ID
	if key == "" {
		key = "step_" + strconv.Itoa(step.Index)
	}

	details := &exec.Log.Details
	if details.ConditionResults == nil {
		details.ConditionResults = make(map[string]bool)
	}

	details.ConditionResults[key] = result

	i.logger.InfoContext(ctx, "condition evaluated",
		"execution_log_id", exec.Log.ID,
		"step_index", step.Index,
		"field", condition.Field,
		"operator", condition.Operator,
		"result", result,
	)
}
