package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionLogNotFound indicates an execution log was not found.
	ErrExecutionLogNotFound = errors.New("execution log not found")

	// ErrExecutionLogTerminal indicates an update was attempted on a log in a terminal status.
	ErrExecutionLogTerminal = errors.New("execution log is in a terminal status")

	// ErrEntityNotFound indicates a CRM record (client, job, invoice, task, company) was not found.
	ErrEntityNotFound = errors.New("entity not found")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "IncrementMetrics")
	WorkflowID string
	Err        error
	Message    string // Additional context message
}

func (e *WorkflowError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for workflow %s: %s (%v)", e.Op, e.WorkflowID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// ExecutionLogError wraps execution log errors with the log id.
type ExecutionLogError struct {
	Op    string
	LogID string
	Err   error
}

func (e *ExecutionLogError) Error() string {
	return fmt.Sprintf("%s operation failed for execution log %s: %v", e.Op, e.LogID, e.Err)
}

func (e *ExecutionLogError) Unwrap() error {
	return e.Err
}

func (e *ExecutionLogError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewExecutionLogError(op, logID string, err error) *ExecutionLogError {
	return &ExecutionLogError{Op: op, LogID: logID, Err: err}
}

// EntityError wraps entity lookup errors with the entity type and id.
type EntityError struct {
	EntityType string
	EntityID   string
	Err        error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("lookup failed for %s %s: %v", e.EntityType, e.EntityID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewEntityError(entityType, entityID string, err error) *EntityError {
	return &EntityError{EntityType: entityType, EntityID: entityID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionLogNotFound checks if an error indicates an execution log was not found.
func IsExecutionLogNotFound(err error) bool {
	return errors.Is(err, ErrExecutionLogNotFound)
}

// IsExecutionLogTerminal checks if an error indicates a terminal log was about to be modified.
func IsExecutionLogTerminal(err error) bool {
	return errors.Is(err, ErrExecutionLogTerminal)
}

// IsEntityNotFound checks if an error indicates a CRM record was not found.
func IsEntityNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
