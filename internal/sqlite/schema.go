// Package sqlite implements the SQLite storage backend for the graph.
// This file holds the schema DDL.
package sqlite

// Schema DDL for all tables. Graph records are stored whole as JSON in the
// record column; the other columns exist for lookups and ordering.
const (
	createMeta = `CREATE TABLE IF NOT EXISTS meta (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	createCharacters = `CREATE TABLE IF NOT EXISTS characters (
    character_id INTEGER PRIMARY KEY,
    owner TEXT NOT NULL,
    handle TEXT NOT NULL,
    record TEXT NOT NULL
);`

	createPrimaries = `CREATE TABLE IF NOT EXISTS primaries (
    address TEXT PRIMARY KEY,
    character_id INTEGER NOT NULL
);`

	createBindings = `CREATE TABLE IF NOT EXISTS linklist_bindings (
    character_id INTEGER NOT NULL,
    link_type TEXT NOT NULL,
    linklist_id INTEGER NOT NULL,
    PRIMARY KEY (character_id, link_type)
);`

	createLinklists = `CREATE TABLE IF NOT EXISTS linklists (
    linklist_id INTEGER PRIMARY KEY,
    owner TEXT NOT NULL,
    character_id INTEGER NOT NULL,
    record TEXT NOT NULL
);`

	createNotes = `CREATE TABLE IF NOT EXISTS notes (
    character_id INTEGER NOT NULL,
    note_id INTEGER NOT NULL,
    record TEXT NOT NULL,
    PRIMARY KEY (character_id, note_id)
);`

	createMintNFTs = `CREATE TABLE IF NOT EXISTS mint_nfts (
    address TEXT PRIMARY KEY,
    character_id INTEGER NOT NULL,
    note_id INTEGER NOT NULL,
    record TEXT NOT NULL
);`

	createAddressModules = `CREATE TABLE IF NOT EXISTS address_modules (
    address TEXT PRIMARY KEY,
    module TEXT NOT NULL
);`

	createLinkTargets = `CREATE TABLE IF NOT EXISTS link_targets (
    kind TEXT NOT NULL,
    key TEXT NOT NULL,
    record TEXT NOT NULL,
    PRIMARY KEY (kind, key)
);`

	createEvents = `CREATE TABLE IF NOT EXISTS events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL,
    character_id INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    record TEXT NOT NULL
);`
)

// Index DDL for common queries.
const (
	idxCharactersHandle = `CREATE INDEX IF NOT EXISTS idx_characters_handle ON characters(handle);`
	idxCharactersOwner  = `CREATE INDEX IF NOT EXISTS idx_characters_owner ON characters(owner);`
	idxLinklistsOwner   = `CREATE INDEX IF NOT EXISTS idx_linklists_owner ON linklists(owner);`
	idxEventsCharacter  = `CREATE INDEX IF NOT EXISTS idx_events_character ON events(character_id, seq);`
	idxEventsKind       = `CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createMeta,
	createCharacters,
	createPrimaries,
	createBindings,
	createLinklists,
	createNotes,
	createMintNFTs,
	createAddressModules,
	createLinkTargets,
	createEvents,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxCharactersHandle,
	idxCharactersOwner,
	idxLinklistsOwner,
	idxEventsCharacter,
	idxEventsKind,
}
