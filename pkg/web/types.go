package web

import (
	"maps"

	"github.com/crewdesk/automation/pkg/models"
)

// EnqueueRequest is the body of POST /execution-logs. It mirrors what the
// trigger emitter writes when a CRM record changes.
type EnqueueRequest struct {
	WorkflowID     string         `json:"workflow_id"     validate:"required"`
	AutomationID   string         `json:"automation_id"`
	OrganizationID string         `json:"organization_id"`
	TriggerType    string         `json:"trigger_type"    validate:"required"`
	EntityID       string         `json:"entity_id"       validate:"required"`
	EntityType     string         `json:"entity_type"     validate:"required"`
	NewStatus      string         `json:"new_status"`
	Data           map[string]any `json:"data"`
}

// ExecutionLog builds the pending log for the request. Data keys never
// override the entity fields.
func (r EnqueueRequest) ExecutionLog() *models.ExecutionLog {
	trigger := models.TriggerData{}
	maps.Copy(trigger, r.Data)

	trigger["entity_id"] = r.EntityID
	trigger["entity_type"] = r.EntityType

	if r.NewStatus != "" {
		trigger["new_status"] = r.NewStatus
	}

	return &models.ExecutionLog{
		WorkflowID:     r.WorkflowID,
		AutomationID:   r.AutomationID,
		OrganizationID: r.OrganizationID,
		TriggerType:    r.TriggerType,
		TriggerData:    trigger,
		Status:         models.ExecutionStatusPending,
	}
}

type ValidationResponse struct {
	WorkflowID string `json:"workflow_id"`
	Valid      bool   `json:"valid"`
	Error      string `json:"error,omitempty"`
	Steps      int    `json:"steps"`
}

type ExpireResponse struct {
	Expired int64 `json:"expired"`
}
