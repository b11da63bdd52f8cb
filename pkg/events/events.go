// Package events defines the lifecycle events published while execution logs move through the engine.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every automation lifecycle event.
const Topic = "automation.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionCompletedEvent EventType = "automation.execution.completed"
	ExecutionFailedEvent    EventType = "automation.execution.failed"
	ExecutionRetryingEvent  EventType = "automation.execution.retrying"
	ExecutionSkippedEvent   EventType = "automation.execution.skipped"
	ExecutionsExpiredEvent  EventType = "automation.execution.expired"
	ExecutionWaitingEvent   EventType = "automation.execution.waiting"
)

// Types lists every lifecycle event type.
var Types = []EventType{
	ExecutionCompletedEvent,
	ExecutionFailedEvent,
	ExecutionRetryingEvent,
	ExecutionSkippedEvent,
	ExecutionsExpiredEvent,
	ExecutionWaitingEvent,
}

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionLogID string `json:"execution_log_id"`
	DurationMs     int64  `json:"duration_ms"`
	StepsExecuted  int    `json:"steps_executed"`
	RetryCount     int    `json:"retry_count"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

// ExecutionFailed is published when a log reaches the terminal failed status.
type ExecutionFailed struct {
	BaseEvent

	ExecutionLogID string `json:"execution_log_id"`
	Error          string `json:"error"`
	RetryCount     int    `json:"retry_count"`
	Validation     bool   `json:"validation"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionRetrying struct {
	BaseEvent

	ExecutionLogID string `json:"execution_log_id"`
	Error          string `json:"error"`
	RetryCount     int    `json:"retry_count"`
	MaxRetries     int    `json:"max_retries"`
}

func (e ExecutionRetrying) GetType() EventType {
	return ExecutionRetryingEvent
}

type ExecutionSkipped struct {
	BaseEvent

	ExecutionLogID     string `json:"execution_log_id"`
	KeptExecutionLogID string `json:"kept_execution_log_id"`
	Reason             string `json:"reason"`
}

func (e ExecutionSkipped) GetType() EventType {
	return ExecutionSkippedEvent
}

// ExecutionsExpired summarizes one stale-log sweep.
type ExecutionsExpired struct {
	BaseEvent

	Count     int64     `json:"count"`
	OlderThan time.Time `json:"older_than"`
}

func (e ExecutionsExpired) GetType() EventType {
	return ExecutionsExpiredEvent
}

type ExecutionWaiting struct {
	BaseEvent

	ExecutionLogID string    `json:"execution_log_id"`
	ResumeAt       time.Time `json:"resume_at"`
	ResumeStep     int       `json:"resume_step"`
}

func (e ExecutionWaiting) GetType() EventType {
	return ExecutionWaitingEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
