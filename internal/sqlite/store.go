package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/loom/pkg/types"
)

const countersKey = "counters"

// Persist implements types.Store. All rows of cs are written in a single
// transaction; on error nothing is written.
func (b *Backend) Persist(ctx context.Context, cs *types.ChangeSet) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.withTx(ctx, func(tx *sql.Tx) error {
		if err := putJSON(ctx, tx, `INSERT OR REPLACE INTO meta (name, value) VALUES (?, ?)`, cs.Counters, countersKey); err != nil {
			return fmt.Errorf("writing counters: %w", err)
		}
		for _, c := range cs.Characters {
			if err := putJSON(ctx, tx,
				`INSERT OR REPLACE INTO characters (character_id, owner, handle, record) VALUES (?, ?, ?, ?)`,
				c, c.CharacterID, c.Owner.Hex(), c.Handle); err != nil {
				return fmt.Errorf("writing character %d: %w", c.CharacterID, err)
			}
		}
		for _, id := range cs.DeletedCharacters {
			if _, err := tx.ExecContext(ctx, `DELETE FROM characters WHERE character_id = ?`, id); err != nil {
				return fmt.Errorf("deleting character %d: %w", id, err)
			}
		}
		for addr, id := range cs.Primaries {
			var err error
			if id == 0 {
				_, err = tx.ExecContext(ctx, `DELETE FROM primaries WHERE address = ?`, addr.Hex())
			} else {
				_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO primaries (address, character_id) VALUES (?, ?)`, addr.Hex(), id)
			}
			if err != nil {
				return fmt.Errorf("writing primary of %s: %w", addr.Hex(), err)
			}
		}
		for _, bd := range cs.Bindings {
			var err error
			if bd.LinklistID == 0 {
				_, err = tx.ExecContext(ctx, `DELETE FROM linklist_bindings WHERE character_id = ? AND link_type = ?`,
					bd.CharacterID, bd.LinkType.Hash().Hex())
			} else {
				_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO linklist_bindings (character_id, link_type, linklist_id) VALUES (?, ?, ?)`,
					bd.CharacterID, bd.LinkType.Hash().Hex(), bd.LinklistID)
			}
			if err != nil {
				return fmt.Errorf("writing binding of character %d: %w", bd.CharacterID, err)
			}
		}
		for _, l := range cs.Linklists {
			if err := putJSON(ctx, tx,
				`INSERT OR REPLACE INTO linklists (linklist_id, owner, character_id, record) VALUES (?, ?, ?, ?)`,
				l, l.LinklistID, l.Owner.Hex(), l.CharacterID); err != nil {
				return fmt.Errorf("writing linklist %d: %w", l.LinklistID, err)
			}
		}
		for _, n := range cs.Notes {
			if err := putJSON(ctx, tx,
				`INSERT OR REPLACE INTO notes (character_id, note_id, record) VALUES (?, ?, ?)`,
				n, n.CharacterID, n.NoteID); err != nil {
				return fmt.Errorf("writing note %d/%d: %w", n.CharacterID, n.NoteID, err)
			}
		}
		for _, m := range cs.MintNFTs {
			if err := putJSON(ctx, tx,
				`INSERT OR REPLACE INTO mint_nfts (address, character_id, note_id, record) VALUES (?, ?, ?, ?)`,
				m, m.Address.Hex(), m.CharacterID, m.NoteID); err != nil {
				return fmt.Errorf("writing mint nft %s: %w", m.Address.Hex(), err)
			}
		}
		for addr, mod := range cs.AddressModules {
			var err error
			if mod == (common.Address{}) {
				_, err = tx.ExecContext(ctx, `DELETE FROM address_modules WHERE address = ?`, addr.Hex())
			} else {
				_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO address_modules (address, module) VALUES (?, ?)`, addr.Hex(), mod.Hex())
			}
			if err != nil {
				return fmt.Errorf("writing link module of %s: %w", addr.Hex(), err)
			}
		}
		for _, item := range cs.Targets {
			if err := putJSON(ctx, tx,
				`INSERT OR IGNORE INTO link_targets (kind, key, record) VALUES (?, ?, ?)`,
				item, item.Kind.String(), item.Key.Hex()); err != nil {
				return fmt.Errorf("writing %s target %s: %w", item.Kind, item.Key.Hex(), err)
			}
		}
		for _, ev := range cs.Events {
			if err := putJSON(ctx, tx,
				`INSERT INTO events (event_id, kind, character_id, created_at, record) VALUES (?, ?, ?, ?, ?)`,
				ev, ev.EventID, string(ev.Kind), ev.CharacterID, ev.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
				return fmt.Errorf("writing event %s: %w", ev.EventID, err)
			}
		}
		return nil
	})
}

// putJSON executes query with args followed by the JSON encoding of record.
func putJSON(ctx context.Context, tx *sql.Tx, query string, record any, args ...any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, append(args, string(data))...)
	return err
}

// Load implements types.Store. The returned change set holds every stored
// record and no events.
func (b *Backend) Load(ctx context.Context) (*types.ChangeSet, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	cs := &types.ChangeSet{
		Primaries:      make(map[common.Address]uint64),
		AddressModules: make(map[common.Address]common.Address),
	}

	var raw string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = ?`, countersKey).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("reading counters: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), &cs.Counters); err != nil {
			return nil, fmt.Errorf("decoding counters: %w", err)
		}
	}

	if cs.Characters, err = loadRecords[types.Character](ctx, db, `SELECT record FROM characters ORDER BY character_id`); err != nil {
		return nil, fmt.Errorf("loading characters: %w", err)
	}
	if cs.Linklists, err = loadRecords[types.Linklist](ctx, db, `SELECT record FROM linklists ORDER BY linklist_id`); err != nil {
		return nil, fmt.Errorf("loading linklists: %w", err)
	}
	if cs.Notes, err = loadRecords[types.Note](ctx, db, `SELECT record FROM notes ORDER BY character_id, note_id`); err != nil {
		return nil, fmt.Errorf("loading notes: %w", err)
	}
	if cs.MintNFTs, err = loadRecords[types.MintNFT](ctx, db, `SELECT record FROM mint_nfts ORDER BY address`); err != nil {
		return nil, fmt.Errorf("loading mint nfts: %w", err)
	}

	targets, err := loadRecords[types.LinkItem](ctx, db, `SELECT record FROM link_targets ORDER BY kind, key`)
	if err != nil {
		return nil, fmt.Errorf("loading link targets: %w", err)
	}
	for _, item := range targets {
		cs.Targets = append(cs.Targets, *item)
	}

	err = eachRow(ctx, db, `SELECT address, character_id FROM primaries`, func(rows *sql.Rows) error {
		var addr string
		var id uint64
		if err := rows.Scan(&addr, &id); err != nil {
			return err
		}
		cs.Primaries[common.HexToAddress(addr)] = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading primaries: %w", err)
	}

	err = eachRow(ctx, db, `SELECT character_id, link_type, linklist_id FROM linklist_bindings ORDER BY character_id, link_type`, func(rows *sql.Rows) error {
		var bd types.LinklistBinding
		var lt string
		if err := rows.Scan(&bd.CharacterID, &lt, &bd.LinklistID); err != nil {
			return err
		}
		bd.LinkType = types.LinkType(common.HexToHash(lt))
		cs.Bindings = append(cs.Bindings, bd)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading bindings: %w", err)
	}

	err = eachRow(ctx, db, `SELECT address, module FROM address_modules`, func(rows *sql.Rows) error {
		var addr, mod string
		if err := rows.Scan(&addr, &mod); err != nil {
			return err
		}
		cs.AddressModules[common.HexToAddress(addr)] = common.HexToAddress(mod)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading address modules: %w", err)
	}

	b.log.Debug("graph loaded from sqlite",
		zap.Int("characters", len(cs.Characters)),
		zap.Int("linklists", len(cs.Linklists)),
		zap.Int("notes", len(cs.Notes)),
	)
	return cs, nil
}

// loadRecords decodes the single JSON column returned by query into a slice.
func loadRecords[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]*T, error) {
	var out []*T
	err := eachRow(ctx, db, query, func(rows *sql.Rows) error {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		v := new(T)
		if err := json.Unmarshal([]byte(raw), v); err != nil {
			return err
		}
		out = append(out, v)
		return nil
	}, args...)
	return out, err
}

func eachRow(ctx context.Context, db *sql.DB, query string, fn func(*sql.Rows) error, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
