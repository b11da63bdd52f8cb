package workflow

import (
	"testing"

	"github.com/crewdesk/automation/pkg/template"
	"github.com/stretchr/testify/assert"
)

func TestCondition_Evaluate(t *testing.T) {
	vars := template.Variables{
		"job_status":     "completed",
		"invoice_amount": "$1,250.00",
		"client_name":    "Jane Doe",
		"visits":         "3",
		"threshold":      "2",
	}

	tests := []struct {
		name      string
		condition Condition
		expected  bool
	}{
		{"equals", Condition{"job_status", OperatorEquals, "completed"}, true},
		{"equals mismatch", Condition{"job_status", OperatorEquals, "cancelled"}, false},
		{"not equals", Condition{"job_status", OperatorNotEquals, "cancelled"}, true},
		{"contains", Condition{"client_name", OperatorContains, "Doe"}, true},
		{"greater than formatted amount", Condition{"invoice_amount", OperatorGreaterThan, "1000"}, true},
		{"less than", Condition{"visits", OperatorLessThan, "2"}, false},
		{"value rendered from context", Condition{"visits", OperatorGreaterThan, "{{threshold}}"}, true},
		{"field written as template", Condition{"{{job_status}}", OperatorEquals, "completed"}, true},
		{"non numeric comparison", Condition{"client_name", OperatorGreaterThan, "1"}, false},
		{"missing field", Condition{"unknown", OperatorEquals, "x"}, false},
		{"unknown operator", Condition{"job_status", Operator("starts_with"), "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.condition.Evaluate(vars))
		})
	}
}

func TestConditionFromConfig(t *testing.T) {
	condition := conditionFromConfig(map[string]any{"field": "visits", "operator": "GREATER_THAN", "value": 2})

	assert.Equal(t, Condition{Field: "visits", Operator: OperatorGreaterThan, Value: "2"}, condition)
}
