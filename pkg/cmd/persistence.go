// Package cmd provides common initialization for the engine binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence/memory"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme. Anything that is not postgres falls back to the in-memory store,
// which only suits development and tests.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	scheme, _, _ := strings.Cut(databaseURL, "://")

	switch scheme {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "memory", "":
		logger.Warn("Using in-memory persistence, state is lost on restart")

		return memory.NewPersistence(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider: %s", scheme)
	}
}
