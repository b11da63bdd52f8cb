package workflow

import (
	"context"
	"fmt"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence"
)

type ValidationResult struct {
	IsValid  bool
	Error    *ValidationError
	Workflow *models.Workflow
	Steps    []models.ExecutableStep
}

type Validator struct {
	cache *Cache
}

func NewValidator(cache *Cache) *Validator {
	return &Validator{cache: cache}
}

func invalid(workflowID string, err error) ValidationResult {
	return ValidationResult{Error: NewValidationError(workflowID, err)}
}

// Validate checks that a workflow exists, is active and has at least one executable step.
// Store failures other than not-found are returned as err and say nothing about validity.
func (v *Validator) Validate(ctx context.Context, workflowID string) (ValidationResult, error) {
	workflow, err := v.cache.Get(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return invalid(workflowID, ErrWorkflowNotFound), nil
		}

		return ValidationResult{}, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	if !workflow.IsRunnable() {
		result := invalid(workflowID, ErrWorkflowInactive)
		result.Workflow = workflow

		return result, nil
	}

	raw := workflow.RawSteps()
	if len(raw) == 0 {
		result := invalid(workflowID, ErrNoActions)
		result.Workflow = workflow

		return result, nil
	}

	steps := models.NormalizeSteps(raw)
	if len(steps) == 0 {
		result := invalid(workflowID, ErrNoExecutableActions)
		result.Workflow = workflow

		return result, nil
	}

	return ValidationResult{IsValid: true, Workflow: workflow, Steps: steps}, nil
}
