// Package testutil provides test data builders for workflows, steps and execution logs.
package testutil

import (
	"time"

	"github.com/crewdesk/automation/pkg/models"
)

// NewWorkflow returns an active job-triggered workflow with the given steps.
func NewWorkflow(steps []*models.Step, overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		OrganizationID: "org-1",
		Name:           "Job follow up",
		TriggerType:    "job_status_changed",
		Steps:          steps,
		IsActive:       true,
		Status:         models.WorkflowStatusActive,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithStatus sets the lifecycle status; anything but active also clears IsActive.
func WithStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Status = status
		w.IsActive = status == models.WorkflowStatusActive
	}
}

func WithName(name string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Name = name
	}
}

// NewExecutionLog returns a pending log for a job status change.
func NewExecutionLog(workflowID, jobID string, overrides ...func(*models.ExecutionLog)) *models.ExecutionLog {
	log := &models.ExecutionLog{
		WorkflowID:     workflowID,
		OrganizationID: "org-1",
		TriggerType:    "job_status_changed",
		TriggerData: models.TriggerData{
			"entity_id":   jobID,
			"entity_type": "job",
			"new_status":  "completed",
		},
		Status: models.ExecutionStatusPending,
	}

	for _, override := range overrides {
		override(log)
	}

	return log
}

func WithCreatedAt(createdAt time.Time) func(*models.ExecutionLog) {
	return func(l *models.ExecutionLog) {
		l.CreatedAt = createdAt
	}
}

func WithOrganization(organizationID string) func(*models.ExecutionLog) {
	return func(l *models.ExecutionLog) {
		l.OrganizationID = organizationID
	}
}

func WithTrigger(key string, value any) func(*models.ExecutionLog) {
	return func(l *models.ExecutionLog) {
		l.TriggerData[key] = value
	}
}

func SMSStep(message string) *models.Step {
	return &models.Step{Type: "action", Config: map[string]any{"actionType": "send_sms", "message": message}}
}

func EmailStep(subject, body string) *models.Step {
	return &models.Step{Type: "action", Config: map[string]any{"actionType": "send_email", "subject": subject, "body": body}}
}

func NotificationStep(userID, message string) *models.Step {
	return &models.Step{Type: "notification", Config: map[string]any{"userId": userID, "message": message}}
}

func DelayStep(value any, unit string) *models.Step {
	return &models.Step{Type: "delay", Config: map[string]any{"delayValue": value, "delayUnit": unit}}
}

func TriggerStep() *models.Step {
	return &models.Step{Type: "trigger"}
}
