// Package file provides the file-based persistence implementation used for development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/crewdesk/automation/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Each record is one JSON file under a per-collection directory.
type Persistence struct {
	root             string
	workflowRepo     *WorkflowRepository
	executionLogRepo *ExecutionLogRepository
	notificationRepo *NotificationRepository
	taskRepo         *TaskRepository
	entityRepo       *EntityRepository
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	store := &store{root: cleanRoot}

	return &Persistence{
		root:             cleanRoot,
		workflowRepo:     &WorkflowRepository{store: store},
		executionLogRepo: &ExecutionLogRepository{store: store},
		notificationRepo: &NotificationRepository{store: store},
		taskRepo:         &TaskRepository{store: store},
		entityRepo:       &EntityRepository{store: store},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionLogRepository() persistence.ExecutionLogRepository {
	return fp.executionLogRepo
}

func (fp *Persistence) NotificationRepository() persistence.NotificationRepository {
	return fp.notificationRepo
}

func (fp *Persistence) TaskRepository() persistence.TaskRepository {
	return fp.taskRepo
}

func (fp *Persistence) EntityRepository() persistence.EntityRepository {
	return fp.entityRepo
}

// Entities exposes the concrete entity repository so fixtures can be seeded.
func (fp *Persistence) Entities() *EntityRepository {
	return fp.entityRepo
}

// store serializes every read-modify-write across the collections of one root.
type store struct {
	root string
	mu   sync.Mutex
}

func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("id contains invalid characters")
	}

	return nil
}

func (s *store) write(collection, id string, record any) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	dir := filepath.Join(s.root, collection)

	err = os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", collection, id, err)
	}

	err = os.WriteFile(filepath.Join(dir, id+".json"), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s %s: %w", collection, id, err)
	}

	return nil
}

// read returns fs.ErrNotExist when the record is missing.
func (s *store) read(collection, id string, record any) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(s.root, collection, id+".json"))
	if err != nil {
		return err
	}

	err = json.Unmarshal(data, record)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", collection, id, err)
	}

	return nil
}

func (s *store) ids(collection string) ([]string, error) {
	jsonFiles, err := fs.Glob(os.DirFS(filepath.Join(s.root, collection)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", collection, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
