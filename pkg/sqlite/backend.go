// Package sqlite provides the public constructor for the SQLite graph store
// while keeping implementation details internal.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/loom/internal/sqlite"
	"github.com/mesh-intelligence/loom/pkg/types"
)

// Store is a types.Store with an explicit lifecycle.
type Store interface {
	types.Store
	Attach(config types.Config) error
	Detach() error
}

// NewBackend creates a new SQLite store. The store is not attached; call
// Attach with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewBackend(logger)
//	err := store.Attach(types.DefaultConfig(".loom"))
//	defer store.Detach()
//	cs, err := store.Load(ctx)
func NewBackend(log *zap.Logger) Store {
	return sqlite.NewBackend(log)
}
