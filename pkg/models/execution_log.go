package models

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cast"
)

// ExecutionStatus is the state of one execution log.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusWaiting   ExecutionStatus = "waiting" // Suspended on a delay step until resume_at
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusSkipped   ExecutionStatus = "skipped"
	ExecutionStatusExpired   ExecutionStatus = "expired"
)

// TerminalStatuses lists the statuses that never change once reached.
var TerminalStatuses = []ExecutionStatus{
	ExecutionStatusCompleted,
	ExecutionStatusFailed,
	ExecutionStatusSkipped,
	ExecutionStatusExpired,
}

var legalTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionStatusPending: {
		ExecutionStatusRunning,
		ExecutionStatusSkipped,
		ExecutionStatusExpired,
		ExecutionStatusFailed, // validation failures never start running
	},
	ExecutionStatusRunning: {
		ExecutionStatusCompleted,
		ExecutionStatusFailed,
		ExecutionStatusPending, // retryable failure requeue
		ExecutionStatusWaiting,
	},
	ExecutionStatusWaiting: {
		ExecutionStatusRunning,
		ExecutionStatusFailed,
	},
}

// ErrIllegalTransition is returned when a status change is not allowed by the lifecycle.
var ErrIllegalTransition = errors.New("illegal execution status transition")

// IsTerminal reports whether the status is final.
func (s ExecutionStatus) IsTerminal() bool {
	return slices.Contains(TerminalStatuses, s)
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	return slices.Contains(legalTransitions[s], next)
}

// TriggerData is the payload written by the trigger emitter.
// It carries at least entity_id and entity_type plus arbitrary context.
type TriggerData map[string]any

// String returns the value stored under key as a string, or "" when absent.
func (t TriggerData) String(key string) string {
	v, ok := t[key]
	if !ok || v == nil {
		return ""
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}

	return s
}

func (t TriggerData) EntityID() string   { return t.String("entity_id") }
func (t TriggerData) EntityType() string { return t.String("entity_type") }
func (t TriggerData) NewStatus() string  { return t.String("new_status") }

// StepFailure records one failed step of an attempt.
type StepFailure struct {
	Index int       `json:"index"`
	Kind  StepKind  `json:"kind"`
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

// ExecutionDetails is the structured audit payload stored with a log.
type ExecutionDetails struct {
	RetryCount       int             `json:"retry_count"`
	LastError        string          `json:"last_error,omitempty"`
	ExecutionTimeMs  int64           `json:"execution_time_ms,omitempty"`
	FinalRetryCount  *int            `json:"final_retry_count,omitempty"`
	StepErrors       []StepFailure   `json:"step_errors,omitempty"`
	CompletedSteps   []int           `json:"completed_steps,omitempty"`
	ConditionResults map[string]bool `json:"condition_results,omitempty"`
	ResumeAt         *time.Time      `json:"resume_at,omitempty"`
	ResumeStep       int             `json:"resume_step,omitempty"`
}

// IsStepCompleted reports whether the step at index already ran successfully.
func (d *ExecutionDetails) IsStepCompleted(index int) bool {
	return slices.Contains(d.CompletedSteps, index)
}

// MarkStepCompleted records a successful step.
func (d *ExecutionDetails) MarkStepCompleted(index int) {
	if !d.IsStepCompleted(index) {
		d.CompletedSteps = append(d.CompletedSteps, index)
	}
}

// ExecutionLog is the durable audit record of one attempt (and its retries)
// to run a workflow for one triggering event.
type ExecutionLog struct {
	ID             string           `json:"id"`
	WorkflowID     string           `json:"workflow_id"`
	AutomationID   string           `json:"automation_id,omitempty"`
	OrganizationID string           `json:"organization_id,omitempty"`
	TriggerType    string           `json:"trigger_type"`
	TriggerData    TriggerData      `json:"trigger_data"`
	Status         ExecutionStatus  `json:"status"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	Details        ExecutionDetails `json:"details"`
	CreatedAt      time.Time        `json:"created_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// DedupKey returns the composite key used to collapse duplicate triggers.
func (l *ExecutionLog) DedupKey() string {
	return l.WorkflowID + ":" + l.TriggerData.EntityID() + ":" + l.TriggerData.NewStatus()
}

// Transition moves the log to next, refusing changes the lifecycle does not allow.
func (l *ExecutionLog) Transition(next ExecutionStatus) error {
	if !l.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s (log %s)", ErrIllegalTransition, l.Status, next, l.ID)
	}

	l.Status = next

	return nil
}
