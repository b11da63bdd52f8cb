package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/persistence"
)

type cacheEntry struct {
	workflow  *models.Workflow
	fetchedAt time.Time
}

// Cache keeps recently fetched workflow definitions for a short TTL.
type Cache struct {
	repository persistence.WorkflowRepository
	ttl        time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCache(repository persistence.WorkflowRepository, ttl time.Duration) *Cache {
	return &Cache{
		repository: repository,
		ttl:        ttl,
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
	}
}

// Get returns the cached workflow when fetched within the TTL and re-fetches it otherwise.
func (c *Cache) Get(ctx context.Context, id string) (*models.Workflow, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()

	if ok && now.Sub(entry.fetchedAt) < c.ttl {
		return entry.workflow, nil
	}

	workflow, err := c.repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[id] = cacheEntry{workflow: workflow, fetchedAt: now}
	c.mu.Unlock()

	return workflow, nil
}

func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
