package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/crewdesk/automation/pkg/persistence/file"
	"github.com/crewdesk/automation/pkg/persistence/postgresql"
)

// NewPersistence picks the store by URL scheme: postgres:// or postgresql:// for PostgreSQL,
// file:// (or a bare path) for JSON files.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		provider = "file"
	}

	switch provider {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "file":
		return file.NewPersistence(databaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider %q", provider)
	}
}
