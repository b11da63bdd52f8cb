package template

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/spf13/cast"
)

const (
	DateLayout = "January 2, 2006"
	TimeLayout = "3:04 PM"
)

// Resolver builds the variable context of an execution from its trigger entity,
// the organization's company profile and the current time in the owner's timezone.
type Resolver struct {
	entities        persistence.EntityRepository
	defaultLocation *time.Location
	logger          *slog.Logger
	now             func() time.Time
}

// NewResolver creates a resolver falling back to defaultTimezone when the company has none.
func NewResolver(logger *slog.Logger, entities persistence.EntityRepository, defaultTimezone string) (*Resolver, error) {
	location, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load default timezone %q: %w", defaultTimezone, err)
	}

	return &Resolver{
		entities:        entities,
		defaultLocation: location,
		logger:          logger.With("module", "variable_resolver"),
		now:             time.Now,
	}, nil
}

// WithClock overrides the time source.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now

	return r
}

// Build resolves the variable context for log. Missing records are logged and skipped;
// any other lookup failure is returned.
func (r *Resolver) Build(ctx context.Context, log *models.ExecutionLog, workflow *models.Workflow) (Variables, error) {
	vars := Variables{}
	trigger := log.TriggerData

	organizationID := log.OrganizationID
	if organizationID == "" && workflow != nil {
		organizationID = workflow.OrganizationID
	}

	location := r.defaultLocation

	if organizationID != "" {
		company, err := r.entities.Company(ctx, organizationID)

		switch {
		case err == nil:
			putCompany(vars, company)
			location = r.location(ctx, company.Timezone)
		case persistence.IsEntityNotFound(err):
			r.logger.WarnContext(ctx, "company not found", "organization_id", organizationID)
		default:
			return nil, fmt.Errorf("failed to resolve company: %w", err)
		}
	}

	err := r.resolveEntity(ctx, vars, trigger.EntityType(), trigger.EntityID(), location)
	if err != nil {
		return nil, err
	}

	now := r.now().In(location)
	vars["current_date"] = now.Format(DateLayout)
	vars["current_time"] = now.Format(TimeLayout)
	vars["tomorrow_date"] = now.AddDate(0, 0, 1).Format(DateLayout)

	vars.Put("trigger_type", log.TriggerType)
	vars.Put("workflow_id", log.WorkflowID)

	for key, value := range trigger {
		if value == nil {
			continue
		}

		s, err := cast.ToStringE(value)
		if err != nil {
			continue // nested objects have no flat representation
		}

		vars.Set(key, s)
	}

	return vars, nil
}

func (r *Resolver) location(ctx context.Context, name string) *time.Location {
	if name == "" {
		return r.defaultLocation
	}

	location, err := time.LoadLocation(name)
	if err != nil {
		r.logger.WarnContext(ctx, "unknown company timezone, using default", "timezone", name, "error", err)

		return r.defaultLocation
	}

	return location
}

func (r *Resolver) resolveEntity(ctx context.Context, vars Variables, entityType, entityID string, location *time.Location) error {
	if entityID == "" {
		return nil
	}

	var clientID, jobID string

	switch strings.ToLower(entityType) {
	case "job":
		jobID = entityID
	case "invoice":
		invoice, err := r.entities.Invoice(ctx, entityID)
		if ok, err := r.found(ctx, "invoice", entityID, err); !ok {
			return err
		}

		putInvoice(vars, invoice, location)
		clientID, jobID = invoice.ClientID, invoice.JobID
	case "task":
		task, err := r.entities.Task(ctx, entityID)
		if ok, err := r.found(ctx, "task", entityID, err); !ok {
			return err
		}

		vars.Put("task_id", task.ID)
		vars.Put("task_title", task.Title)
		clientID, jobID = task.ClientID, task.JobID
	case "client":
		clientID = entityID
	default:
		r.logger.DebugContext(ctx, "entity type has no lookup", "entity_type", entityType)

		return nil
	}

	if jobID != "" {
		job, err := r.entities.Job(ctx, jobID)
		if ok, err := r.found(ctx, "job", jobID, err); !ok {
			if err != nil {
				return err
			}
		} else {
			putJob(vars, job, location)

			if clientID == "" {
				clientID = job.ClientID
			}
		}
	}

	if clientID != "" {
		client, err := r.entities.Client(ctx, clientID)
		if ok, err := r.found(ctx, "client", clientID, err); !ok {
			return err
		}

		putClient(vars, client)
	}

	return nil
}

// found reports whether a lookup succeeded. A missing record is logged and yields (false, nil).
func (r *Resolver) found(ctx context.Context, entityType, id string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}

	if persistence.IsEntityNotFound(err) {
		r.logger.WarnContext(ctx, "trigger entity not found", "entity_type", entityType, "entity_id", id)

		return false, nil
	}

	return false, fmt.Errorf("failed to resolve %s %s: %w", entityType, id, err)
}

func putCompany(vars Variables, company *models.Company) {
	vars.Put("company_name", company.Name)
	vars.Put("company_phone", company.Phone)
	vars.Put("company_email", company.Email)
	vars.Put("company_address", company.Address)
	vars.Put("company_website", company.Website)
	vars.Put("company_owner_user_id", company.OwnerUserID)
}

func putClient(vars Variables, client *models.Client) {
	first, last := client.FirstName, client.LastName
	if first == "" && last == "" {
		first, last, _ = strings.Cut(strings.TrimSpace(client.Name), " ")
	}

	vars.Put("client_id", client.ID)
	vars.Put("client_name", client.Name)
	vars.Put("client_first_name", first)
	vars.Put("client_last_name", strings.TrimSpace(last))
	vars.Put("client_email", client.Email)
	vars.Put("client_phone", client.Phone)
	vars.Put("client_address", client.Address)
}

func putJob(vars Variables, job *models.Job, location *time.Location) {
	vars.Put("job_id", job.ID)
	vars.Put("job_number", job.Number)
	vars.Put("job_title", job.Title)
	vars.Put("job_status", job.Status)
	vars.Put("job_type", job.JobType)
	vars.Put("job_description", job.Description)
	vars.Put("job_address", job.Address)

	if job.ScheduledStart != nil {
		start := job.ScheduledStart.In(location)
		vars["job_date"] = start.Format(DateLayout)
		vars["job_time"] = start.Format(TimeLayout)
	}
}

func putInvoice(vars Variables, invoice *models.Invoice, location *time.Location) {
	amount := fmt.Sprintf("$%.2f", invoice.Total)

	vars.Put("invoice_id", invoice.ID)
	vars.Put("invoice_number", invoice.Number)
	vars.Put("invoice_status", invoice.Status)
	vars["invoice_amount"] = amount
	vars["amount"] = amount

	if invoice.DueDate != nil {
		vars["invoice_due_date"] = invoice.DueDate.In(location).Format(DateLayout)
	}
}
