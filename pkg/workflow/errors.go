package workflow

import (
	"errors"
	"fmt"

	"github.com/crewdesk/automation/pkg/models"
)

var (
	ErrWorkflowNotFound    = errors.New("workflow not found")
	ErrWorkflowInactive    = errors.New("workflow is not active")
	ErrNoActions           = errors.New("workflow has no actions")
	ErrNoExecutableActions = errors.New("workflow has no executable actions")

	ErrRecipientMissing = errors.New("recipient missing")

	// ErrAtomicIncrementUnavailable is returned when the workflow store cannot bump counters atomically.
	ErrAtomicIncrementUnavailable = errors.New("atomic metrics increment unavailable")
)

var validationMessages = map[error]string{
	ErrWorkflowNotFound:    "Workflow not found",
	ErrWorkflowInactive:    "Workflow is not active",
	ErrNoActions:           "Workflow has no actions",
	ErrNoExecutableActions: "Workflow has no executable actions",
}

// ValidationError means the workflow cannot run at all. It is never retried.
type ValidationError struct {
	WorkflowID string
	Err        error
}

func (e *ValidationError) Error() string {
	if msg, ok := validationMessages[e.Err]; ok {
		return msg
	}

	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidationError(workflowID string, err error) *ValidationError {
	return &ValidationError{WorkflowID: workflowID, Err: err}
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// StepError is the failure of a single step inside a running workflow.
type StepError struct {
	Index int
	Kind  models.StepKind
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// RunError collects the step errors of one attempt. It reports the first one, so
// classification sees the channel error that broke the run.
type RunError struct {
	Steps []*StepError
}

func (e *RunError) Error() string {
	if len(e.Steps) == 0 {
		return "workflow run failed"
	}

	return e.Steps[0].Err.Error()
}

func (e *RunError) Unwrap() []error {
	errs := make([]error, 0, len(e.Steps))
	for _, step := range e.Steps {
		errs = append(errs, step)
	}

	return errs
}
