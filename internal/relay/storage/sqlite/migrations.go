package sqlite

import "context"

// ProgressFunc observes backfill progress as (processed, total) event counts.
// It is advisory only and never gates a commit.
type ProgressFunc func(processed, total int64)

// rebuildFunc is a procedural data transform run once after its owning
// migration's transaction has committed, so the columns it writes exist.
type rebuildFunc func(s *Store, ctx context.Context, progress ProgressFunc) error

// Migration is one immutable unit of schema change. A migration either
// carries only declarative statements, or statements plus a data rebuild.
//
// Serial numbers are strictly increasing and frozen once shipped: every
// deployment replays this exact sequence, so entries are only ever appended
// to the catalog, never edited or reordered.
type Migration struct {
	Serial     int64
	Statements []string
	Rebuild    rebuildFunc
}

// catalog is the complete ordered list of migrations compiled into this
// build. The ledger's maximum recorded serial is the current schema version.
var catalog = []Migration{
	{Serial: 1, Statements: []string{m001SQL}},
	{Serial: 2, Statements: m002SQL, Rebuild: (*Store).rebuildTags},
	{Serial: 3, Statements: m003SQL},
	{Serial: 4, Statements: []string{m004SQL}},
}

// m001SQL creates the initial event, tag, and user verification tables.
const m001SQL = `
-- Events table
CREATE TABLE event (
	id BLOB NOT NULL,
	pub_key BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	kind INTEGER NOT NULL,
	content BLOB NOT NULL,
	hidden INTEGER NOT NULL DEFAULT 0,
	delegated_by BLOB,
	first_seen INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	PRIMARY KEY (id)
);
CREATE INDEX event_created_at_idx ON event (created_at, kind);
CREATE INDEX event_pub_key_idx ON event (pub_key);
CREATE INDEX event_delegated_by_idx ON event (delegated_by);

-- Tags table
CREATE TABLE tag (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id BLOB NOT NULL,
	name TEXT NOT NULL,
	value BLOB NOT NULL,
	FOREIGN KEY (event_id) REFERENCES event (id) ON DELETE CASCADE
);
CREATE INDEX tag_event_id_idx ON tag (event_id, name);
CREATE INDEX tag_value_idx ON tag (value);

-- NIP-05 verification table
CREATE TABLE user_verification (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id BLOB NOT NULL,
	name TEXT NOT NULL,
	verified_at INTEGER,
	failed_at INTEGER,
	fail_count INTEGER DEFAULT 0,
	FOREIGN KEY (event_id) REFERENCES event (id) ON DELETE CASCADE
);
CREATE INDEX user_verification_event_id_idx ON user_verification (event_id);
CREATE INDEX user_verification_name_idx ON user_verification (name);
`

// m002SQL adds the hex-packed tag value column. SQLite cannot drop a NOT NULL
// constraint in place, so the tag table is rebuilt with value nullable and
// value_hex added; existing rows are carried over untouched.
var m002SQL = []string{
	`ALTER TABLE tag RENAME TO tag_migrate_old;`,
	`CREATE TABLE tag (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id BLOB NOT NULL,
	name TEXT NOT NULL,
	value BLOB,
	value_hex BLOB,
	FOREIGN KEY (event_id) REFERENCES event (id) ON DELETE CASCADE
);`,
	`INSERT INTO tag (id, event_id, name, value)
	SELECT id, event_id, name, value FROM tag_migrate_old;`,
	`DROP TABLE tag_migrate_old;`,
	`CREATE INDEX tag_event_id_idx ON tag (event_id, name);`,
	`CREATE INDEX tag_value_idx ON tag (value);`,
	`CREATE INDEX tag_value_hex_idx ON tag (value_hex);`,
}

// m003SQL makes duplicate tags on one event collapse to a single row.
// Exactly one of value/value_hex is populated per row, so the pair of
// partial unique indexes covers both representations.
var m003SQL = []string{
	`CREATE UNIQUE INDEX tag_value_unique_idx ON tag (event_id, name, value) WHERE value IS NOT NULL;`,
	`CREATE UNIQUE INDEX tag_value_hex_unique_idx ON tag (event_id, name, value_hex) WHERE value_hex IS NOT NULL;`,
}

// m004SQL creates the pay-to-relay account and invoice tables.
const m004SQL = `
CREATE TABLE account (
	pubkey TEXT NOT NULL,
	is_admitted INTEGER NOT NULL DEFAULT 0,
	balance INTEGER NOT NULL DEFAULT 0,
	tos_accepted_at INTEGER,
	PRIMARY KEY (pubkey)
);

CREATE TABLE invoice (
	payment_hash TEXT NOT NULL,
	pubkey TEXT NOT NULL,
	amount INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'Unpaid' CHECK (status IN ('Paid', 'Unpaid', 'Expired')),
	description TEXT,
	confirmed_at INTEGER,
	created_at INTEGER,
	invoice TEXT,
	PRIMARY KEY (payment_hash),
	FOREIGN KEY (pubkey) REFERENCES account (pubkey) ON DELETE CASCADE
);
`
