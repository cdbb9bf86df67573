package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// EventFilter narrows an event query. Zero fields match everything.
type EventFilter struct {
	CharacterID uint64
	Kind        types.EventKind
	Limit       int
}

// Events returns committed events in commit order.
func (b *Backend) Events(ctx context.Context, f EventFilter) ([]types.Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if f.CharacterID != 0 {
		where = append(where, "character_id = ?")
		args = append(args, f.CharacterID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	query := "SELECT record FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	records, err := loadRecords[types.Event](ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	events := make([]types.Event, len(records))
	for i, ev := range records {
		events[i] = *ev
	}
	return events, nil
}

// ExportEvents writes every event matching f to path as JSONL and returns
// how many were written.
func (b *Backend) ExportEvents(ctx context.Context, path string, f EventFilter) (int, error) {
	events, err := b.Events(ctx, f)
	if err != nil {
		return 0, err
	}
	records := make([]json.RawMessage, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return 0, fmt.Errorf("encoding event %s: %w", ev.EventID, err)
		}
		records = append(records, data)
	}
	if err := writeJSONL(path, records); err != nil {
		return 0, fmt.Errorf("exporting events: %w", err)
	}
	return len(records), nil
}
