package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/thesimplekid/nostr-rs-relay/internal/relay/domain/event"
)

// rebuildTags regenerates every derived tag row from stored event content.
//
// The rebuild is a full replacement, not a merge: the write transaction
// deletes all tag rows up front, then re-derives rows while the event table
// streams through a read-only cursor on its own connection, so the table
// never has to fit in memory. The write transaction commits once at the end;
// any parse or database error aborts it and leaves the previous tag rows in
// place. There is no checkpoint; an interrupted rebuild restarts from the
// beginning.
func (s *Store) rebuildTags(ctx context.Context, progress ProgressFunc) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tag"); err != nil {
		return fmt.Errorf("clear tag table: %w", err)
	}

	var total int64
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM event").Scan(&total); err != nil {
		return fmt.Errorf("count events: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx, "SELECT id, content FROM event ORDER BY id")
	if err != nil {
		return fmt.Errorf("stream events: %w", err)
	}
	defer rows.Close()

	var processed int64
	for rows.Next() {
		var id, content []byte
		if err := rows.Scan(&id, &content); err != nil {
			return fmt.Errorf("scan event row: %w", err)
		}
		if err := insertEventTags(ctx, tx, id, content); err != nil {
			return err
		}
		processed++
		if progress != nil {
			progress(processed, total)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("stream events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tag rebuild: %w", err)
	}
	return nil
}

// insertEventTags derives and writes the tag rows for one event.
func insertEventTags(ctx context.Context, tx *sql.Tx, eventID, content []byte) error {
	evt, err := event.Parse(content)
	if err != nil {
		return fmt.Errorf("event %x: %w", eventID, err)
	}

	// The unique index on tag arrives only in a later migration; the seen set
	// keeps duplicate tags within one event from producing duplicate rows.
	seen := make(map[string]struct{})
	for _, tag := range evt.Tags {
		if len(tag) < 2 {
			continue
		}
		name := tag[0]
		if _, ok := event.SingleCharTagName(name); !ok {
			continue
		}
		tagval := tag[1]
		key := name + "\x00" + tagval
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		// Pack the value as raw bytes only when decode/encode restores the
		// original string exactly: even length, all lowercase hex. Anything
		// else is stored verbatim to avoid silent data loss.
		if len(tagval)%2 == 0 && event.IsLowerHex(tagval) {
			decoded, err := hex.DecodeString(tagval)
			if err != nil {
				return fmt.Errorf("decode tag value %q: %w", tagval, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO tag (event_id, name, value_hex) VALUES (?, ?, ?)",
				eventID, name, decoded); err != nil {
				return fmt.Errorf("insert hex tag: %w", err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO tag (event_id, name, value) VALUES (?, ?, ?)",
			eventID, name, []byte(tagval)); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}
