// Package models defines the core domain models for the automation execution engine.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Kept, not executable
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// Workflow is a stored automation definition: a trigger type plus an ordered list of steps.
// Steps may live in one of three storage locations depending on how the workflow was built.
type Workflow struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organization_id"`
	Name            string          `json:"name"`
	TriggerType     string          `json:"trigger_type"`
	Steps           []*Step         `json:"steps,omitempty"`
	TemplateConfig  *StepContainer  `json:"template_config,omitempty"`
	WorkflowConfig  *StepContainer  `json:"workflow_config,omitempty"`
	Connections     []*Connection   `json:"connections,omitempty"`
	IsActive        bool            `json:"is_active"`
	Status          WorkflowStatus  `json:"status"`
	ExecutionCount  int64           `json:"execution_count"`
	SuccessCount    int64           `json:"success_count"`
	LastExecutedAt  *time.Time      `json:"last_executed_at,omitempty"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// StepContainer is the legacy envelope that nests steps under a config object.
type StepContainer struct {
	Steps []*Step `json:"steps,omitempty"`
}

// Connection links two steps of a workflow graph. Graphs are traversed in step order.
type Connection struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// IsRunnable reports whether the workflow may be executed.
func (w *Workflow) IsRunnable() bool {
	return w.IsActive && w.Status == WorkflowStatusActive
}

// RawSteps returns the first non-empty step list, checking steps,
// template_config.steps and workflow_config.steps in that order.
func (w *Workflow) RawSteps() []*Step {
	if len(w.Steps) > 0 {
		return w.Steps
	}

	if w.TemplateConfig != nil && len(w.TemplateConfig.Steps) > 0 {
		return w.TemplateConfig.Steps
	}

	if w.WorkflowConfig != nil && len(w.WorkflowConfig.Steps) > 0 {
		return w.WorkflowConfig.Steps
	}

	return nil
}
