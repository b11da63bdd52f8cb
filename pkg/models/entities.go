package models

import "time"

// The records below belong to the CRM data layer. The engine only reads them,
// except for notifications and tasks which automations may create.

type Client struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id,omitempty"`
	Name           string `json:"name"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
}

type Job struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id,omitempty"`
	Number         string     `json:"number,omitempty"`
	Title          string     `json:"title,omitempty"`
	Status         string     `json:"status,omitempty"`
	JobType        string     `json:"job_type,omitempty"`
	Description    string     `json:"description,omitempty"`
	Address        string     `json:"address,omitempty"`
	ClientID       string     `json:"client_id,omitempty"`
	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
}

type Invoice struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id,omitempty"`
	Number         string     `json:"number,omitempty"`
	Status         string     `json:"status,omitempty"`
	Total          float64    `json:"total"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	ClientID       string     `json:"client_id,omitempty"`
	JobID          string     `json:"job_id,omitempty"`
}

type Task struct {
	ID                string     `json:"id"`
	OrganizationID    string     `json:"organization_id,omitempty"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Status            string     `json:"status,omitempty"`
	DueAt             *time.Time `json:"due_at,omitempty"`
	JobID             string     `json:"job_id,omitempty"`
	ClientID          string     `json:"client_id,omitempty"`
	CreatedByWorkflow string     `json:"created_by_workflow,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Company holds the organization profile used for template variables and timezone resolution.
type Company struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	Address        string `json:"address,omitempty"`
	Website        string `json:"website,omitempty"`
	OwnerUserID    string `json:"owner_user_id,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

// Notification is an in-app message for a user.
type Notification struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	EntityType     string    `json:"entity_type,omitempty"`
	EntityID       string    `json:"entity_id,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}
