package workflow

import (
	"strings"

	"github.com/crewdesk/automation/pkg/template"
	"github.com/spf13/cast"
)

type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
)

// Condition compares one variable against a literal.
type Condition struct {
	Field    string
	Operator Operator
	Value    string
}

func conditionFromConfig(config map[string]any) Condition {
	return Condition{
		Field:    cast.ToString(config["field"]),
		Operator: Operator(strings.ToLower(cast.ToString(config["operator"]))),
		Value:    cast.ToString(config["value"]),
	}
}

// Evaluate resolves Field against vars and applies the operator. A field written as a
// template is rendered; otherwise it names a variable. Unknown operators evaluate to true.
func (c Condition) Evaluate(vars template.Variables) bool {
	var actual string
	if template.HasPlaceholders(c.Field) {
		actual = template.Render(c.Field, vars)
	} else {
		actual = vars[c.Field]
	}

	expected := template.Render(c.Value, vars)

	switch c.Operator {
	case OperatorEquals:
		return actual == expected
	case OperatorNotEquals:
		return actual != expected
	case OperatorContains:
		return strings.Contains(actual, expected)
	case OperatorGreaterThan, OperatorLessThan:
		left, errLeft := toNumber(actual)
		right, errRight := toNumber(expected)

		if errLeft != nil || errRight != nil {
			return false
		}

		if c.Operator == OperatorGreaterThan {
			return left > right
		}

		return left < right
	}

	return true
}

// toNumber also accepts formatted amounts such as "$1,250.00".
func toNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	return cast.ToFloat64E(s)
}
