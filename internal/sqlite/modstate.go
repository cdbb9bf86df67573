package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const moduleStateKey = "module_state"

// ModuleState returns the last saved built-in module state, or nil when
// none was saved.
func (b *Backend) ModuleState(ctx context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	var raw string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = ?`, moduleStateKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading module state: %w", err)
	}
	return []byte(raw), nil
}

// PutModuleState replaces the saved built-in module state.
func (b *Backend) PutModuleState(ctx context.Context, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (name, value) VALUES (?, ?)`, moduleStateKey, string(data)); err != nil {
		return fmt.Errorf("writing module state: %w", err)
	}
	return nil
}
