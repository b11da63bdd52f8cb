package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence"
)

// EntityRepository reads CRM records owned by the data layer.
type EntityRepository struct {
	db *sql.DB
}

var _ persistence.EntityRepository = (*EntityRepository)(nil)

func NewEntityRepository(db *sql.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

func (r *EntityRepository) Client(ctx context.Context, id string) (*models.Client, error) {
	var (
		client                                                       models.Client
		organizationID, firstName, lastName, email, phone, address sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, first_name, last_name, email, phone, address
		FROM clients WHERE id = $1
	`, id).Scan(&client.ID, &organizationID, &client.Name, &firstName, &lastName, &email, &phone, &address)
	if err != nil {
		return nil, lookupError("client", id, err)
	}

	client.OrganizationID = organizationID.String
	client.FirstName = firstName.String
	client.LastName = lastName.String
	client.Email = email.String
	client.Phone = phone.String
	client.Address = address.String

	return &client, nil
}

func (r *EntityRepository) Job(ctx context.Context, id string) (*models.Job, error) {
	var (
		job                                                                                  models.Job
		organizationID, number, title, status, jobType, description, address, clientID sql.NullString
		scheduledStart                                                                       sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, number, title, status, job_type, description, address, client_id, scheduled_start
		FROM jobs WHERE id = $1
	`, id).Scan(&job.ID, &organizationID, &number, &title, &status, &jobType, &description, &address, &clientID, &scheduledStart)
	if err != nil {
		return nil, lookupError("job", id, err)
	}

	job.OrganizationID = organizationID.String
	job.Number = number.String
	job.Title = title.String
	job.Status = status.String
	job.JobType = jobType.String
	job.Description = description.String
	job.Address = address.String
	job.ClientID = clientID.String
	job.ScheduledStart = timePtr(scheduledStart)

	return &job, nil
}

func (r *EntityRepository) Invoice(ctx context.Context, id string) (*models.Invoice, error) {
	var (
		invoice                                          models.Invoice
		organizationID, number, status, clientID, jobID sql.NullString
		dueDate                                          sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, number, status, total, due_date, client_id, job_id
		FROM invoices WHERE id = $1
	`, id).Scan(&invoice.ID, &organizationID, &number, &status, &invoice.Total, &dueDate, &clientID, &jobID)
	if err != nil {
		return nil, lookupError("invoice", id, err)
	}

	invoice.OrganizationID = organizationID.String
	invoice.Number = number.String
	invoice.Status = status.String
	invoice.ClientID = clientID.String
	invoice.JobID = jobID.String
	invoice.DueDate = timePtr(dueDate)

	return &invoice, nil
}

func (r *EntityRepository) Task(ctx context.Context, id string) (*models.Task, error) {
	var (
		task                                                                       models.Task
		organizationID, description, status, jobID, clientID, createdByWorkflow sql.NullString
		dueAt                                                                      sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, title, description, status, due_at, job_id, client_id, created_by_workflow, created_at
		FROM tasks WHERE id = $1
	`, id).Scan(&task.ID, &organizationID, &task.Title, &description, &status, &dueAt, &jobID, &clientID,
		&createdByWorkflow, &task.CreatedAt)
	if err != nil {
		return nil, lookupError("task", id, err)
	}

	task.OrganizationID = organizationID.String
	task.Description = description.String
	task.Status = status.String
	task.JobID = jobID.String
	task.ClientID = clientID.String
	task.CreatedByWorkflow = createdByWorkflow.String
	task.DueAt = timePtr(dueAt)

	return &task, nil
}

func (r *EntityRepository) Company(ctx context.Context, organizationID string) (*models.Company, error) {
	var (
		company                                                     models.Company
		phone, email, address, website, ownerUserID, timezone sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT organization_id, name, phone, email, address, website, owner_user_id, timezone
		FROM companies WHERE organization_id = $1
	`, organizationID).Scan(&company.OrganizationID, &company.Name, &phone, &email, &address, &website, &ownerUserID, &timezone)
	if err != nil {
		return nil, lookupError("company", organizationID, err)
	}

	company.Phone = phone.String
	company.Email = email.String
	company.Address = address.String
	company.Website = website.String
	company.OwnerUserID = ownerUserID.String
	company.Timezone = timezone.String

	return &company, nil
}

func lookupError(entityType, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.NewEntityError(entityType, id, persistence.ErrEntityNotFound)
	}

	return fmt.Errorf("failed to query %s %s: %w", entityType, id, err)
}
