package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/google/uuid"
)

type NotificationRepository struct {
	store *store
}

var _ persistence.NotificationRepository = (*NotificationRepository)(nil)

func (r *NotificationRepository) Insert(_ context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write("notifications", notification.ID, notification)
}

// ByUser lists the notifications addressed to a user.
func (r *NotificationRepository) ByUser(userID string) ([]*models.Notification, error) {
	ids, err := r.store.ids("notifications")
	if err != nil {
		return nil, err
	}

	notifications := make([]*models.Notification, 0)

	for _, id := range ids {
		var notification models.Notification

		err = r.store.read("notifications", id, &notification)
		if err != nil {
			return nil, err
		}

		if notification.UserID == userID {
			notifications = append(notifications, &notification)
		}
	}

	return notifications, nil
}

type TaskRepository struct {
	store *store
}

var _ persistence.TaskRepository = (*TaskRepository)(nil)

func (r *TaskRepository) Insert(_ context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write("tasks", task.ID, task)
}

// ByJob lists the tasks linked to a job.
func (r *TaskRepository) ByJob(jobID string) ([]*models.Task, error) {
	ids, err := r.store.ids("tasks")
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.Task, 0)

	for _, id := range ids {
		var task models.Task

		err = r.store.read("tasks", id, &task)
		if err != nil {
			return nil, err
		}

		if task.JobID == jobID {
			tasks = append(tasks, &task)
		}
	}

	return tasks, nil
}

// EntityRepository reads CRM records from per-type directories.
type EntityRepository struct {
	store *store
}

var _ persistence.EntityRepository = (*EntityRepository)(nil)

func lookup[T any](s *store, collection, entityType, id string) (*T, error) {
	var record T

	err := s.read(collection, id, &record)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewEntityError(entityType, id, persistence.ErrEntityNotFound)
		}

		return nil, fmt.Errorf("failed to read %s %s: %w", entityType, id, err)
	}

	return &record, nil
}

func (r *EntityRepository) Client(_ context.Context, id string) (*models.Client, error) {
	return lookup[models.Client](r.store, "clients", "client", id)
}

func (r *EntityRepository) Job(_ context.Context, id string) (*models.Job, error) {
	return lookup[models.Job](r.store, "jobs", "job", id)
}

func (r *EntityRepository) Invoice(_ context.Context, id string) (*models.Invoice, error) {
	return lookup[models.Invoice](r.store, "invoices", "invoice", id)
}

func (r *EntityRepository) Task(_ context.Context, id string) (*models.Task, error) {
	return lookup[models.Task](r.store, "tasks", "task", id)
}

func (r *EntityRepository) Company(_ context.Context, organizationID string) (*models.Company, error) {
	return lookup[models.Company](r.store, "companies", "company", organizationID)
}

func (r *EntityRepository) SaveClient(client *models.Client) error {
	return r.store.write("clients", client.ID, client)
}

func (r *EntityRepository) SaveJob(job *models.Job) error {
	return r.store.write("jobs", job.ID, job)
}

func (r *EntityRepository) SaveInvoice(invoice *models.Invoice) error {
	return r.store.write("invoices", invoice.ID, invoice)
}

func (r *EntityRepository) SaveCompany(company *models.Company) error {
	return r.store.write("companies", company.OrganizationID, company)
}
