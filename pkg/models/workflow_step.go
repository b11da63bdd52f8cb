package models

import "strings"

// StepKind is the closed set of step kinds the engine knows how to interpret.
type StepKind string

const (
	StepKindUnknown      StepKind = ""
	StepKindTrigger      StepKind = "trigger"
	StepKindSendSMS      StepKind = "send_sms"
	StepKindSendEmail    StepKind = "send_email"
	StepKindNotification StepKind = "notification"
	StepKindCreateTask   StepKind = "create_task"
	StepKindDelay        StepKind = "delay"
	StepKindCondition    StepKind = "condition"
	StepKindFilter       StepKind = "filter"
)

var stepKindAliases = map[string]StepKind{
	"send_sms":          StepKindSendSMS,
	"sms":               StepKindSendSMS,
	"send_email":        StepKindSendEmail,
	"email":             StepKindSendEmail,
	"notification":      StepKindNotification,
	"send_notification": StepKindNotification,
	"create_task":       StepKindCreateTask,
	"task":              StepKindCreateTask,
	"delay":             StepKindDelay,
	"wait":              StepKindDelay,
	"condition":         StepKindCondition,
	"filter":            StepKindFilter,
	"trigger":           StepKindTrigger,
}

// Step is one stored unit of work inside a workflow. Config is interpreted per kind.
type Step struct {
	ID     string         `json:"id,omitempty"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// Kind resolves the step's kind. Generic "action" steps carry their concrete
// kind in config.actionType (or action_type).
func (s *Step) Kind() StepKind {
	if s == nil {
		return StepKindUnknown
	}

	name := strings.ToLower(strings.TrimSpace(s.Type))
	if name == "action" {
		name = ""

		for _, key := range []string{"actionType", "action_type", "action"} {
			if v, ok := s.Config[key].(string); ok && v != "" {
				name = strings.ToLower(strings.TrimSpace(v))

				break
			}
		}

		kind := stepKindAliases[name]
		if kind.IsAction() {
			return kind
		}

		return StepKindUnknown
	}

	return stepKindAliases[name]
}

// IsAction reports whether the kind produces an externally visible side effect.
func (k StepKind) IsAction() bool {
	switch k {
	case StepKindSendSMS, StepKindSendEmail, StepKindNotification, StepKindCreateTask:
		return true
	case StepKindUnknown, StepKindTrigger, StepKindDelay, StepKindCondition, StepKindFilter:
		return false
	}

	return false
}

// IsExecutable reports whether a step of this kind belongs in a normalized step list.
func (k StepKind) IsExecutable() bool {
	switch k {
	case StepKindSendSMS, StepKindSendEmail, StepKindNotification, StepKindCreateTask,
		StepKindDelay, StepKindCondition, StepKindFilter:
		return true
	case StepKindUnknown, StepKindTrigger:
		return false
	}

	return false
}

// ExecutableStep is a normalized step ready for interpretation.
// Index is the step's position in the normalized list and is stable across retries.
type ExecutableStep struct {
	Index  int            `json:"index"`
	ID     string         `json:"id,omitempty"`
	Kind   StepKind       `json:"kind"`
	Config map[string]any `json:"config"`
}

// NormalizeSteps drops trigger and unrecognized steps and assigns stable indexes.
func NormalizeSteps(raw []*Step) []ExecutableStep {
	steps := make([]ExecutableStep, 0, len(raw))

	for _, step := range raw {
		kind := step.Kind()
		if !kind.IsExecutable() {
			continue
		}

		config := step.Config
		if config == nil {
			config = map[string]any{}
		}

		steps = append(steps, ExecutableStep{
			Index:  len(steps),
			ID:     step.ID,
			Kind:   kind,
			Config: config,
		})
	}

	return steps
}
