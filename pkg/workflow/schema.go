package workflow

import (
	"fmt"
	"strings"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var stepSchemas = map[models.StepKind]map[string]any{
	models.StepKindSendSMS: {
		"type":     "object",
		"required": []any{"message"},
		"properties": map[string]any{
			"message": map[string]any{"type": "string", "minLength": 1},
			"to":      map[string]any{"type": "string"},
		},
	},
	models.StepKindSendEmail: {
		"type":     "object",
		"required": []any{"subject"},
		"anyOf": []any{
			map[string]any{"required": []any{"body"}},
			map[string]any{"required": []any{"html"}},
		},
		"properties": map[string]any{
			"subject": map[string]any{"type": "string"},
			"body":    map[string]any{"type": "string"},
			"html":    map[string]any{"type": "string"},
			"to":      map[string]any{"type": "string"},
		},
	},
	models.StepKindNotification: {
		"type":     "object",
		"required": []any{"message"},
		"properties": map[string]any{
			"title":   map[string]any{"type": "string"},
			"message": map[string]any{"type": "string"},
			"userId":  map[string]any{"type": "string"},
		},
	},
	models.StepKindCreateTask: {
		"type":     "object",
		"required": []any{"title"},
		"properties": map[string]any{
			"title":       map[string]any{"type": "string", "minLength": 1},
			"description": map[string]any{"type": "string"},
			"dueInDays":   map[string]any{"type": []any{"number", "string"}},
		},
	},
	models.StepKindDelay: {
		"type": "object",
		"properties": map[string]any{
			"delayValue": map[string]any{"type": []any{"number", "string"}},
			"delayUnit":  map[string]any{"type": "string"},
		},
	},
}

// StepSchemas validates step configs against one compiled JSON schema per kind.
type StepSchemas struct {
	schemas map[models.StepKind]*gojsonschema.Schema
}

func NewStepSchemas() (*StepSchemas, error) {
	compiled := make(map[models.StepKind]*gojsonschema.Schema, len(stepSchemas))

	for kind, definition := range stepSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(definition))
		if err != nil {
			return nil, fmt.Errorf("invalid schema for %s steps: %w", kind, err)
		}

		compiled[kind] = schema
	}

	return &StepSchemas{schemas: compiled}, nil
}

// Validate checks a step's config. Kinds without a schema always pass, which includes
// condition and filter steps: a malformed condition evaluates to true instead of failing.
func (s *StepSchemas) Validate(step models.ExecutableStep) error {
	schema, ok := s.schemas[step.Kind]
	if !ok {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(step.Config))
	if err != nil {
		return fmt.Errorf("failed to validate %s config: %w", step.Kind, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("invalid %s config: %s", step.Kind, strings.Join(messages, "; "))
	}

	return nil
}
