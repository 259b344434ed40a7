package sqlite

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"
)

func insertEvent(t *testing.T, store *Store, id []byte, content string) {
	t.Helper()

	_, err := store.DB().Exec(
		"INSERT INTO event (id, pub_key, created_at, kind, content) VALUES (?, ?, ?, ?, ?)",
		id, []byte{0xab, 0xcd}, int64(1700000000), 1, []byte(content))
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
}

func TestUpgradeRebuildsTagsForExistingEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	full := catalog

	// Deploy the initial schema only, then store an event the way an old
	// build would have: verbatim tag values, no value_hex column yet.
	swapCatalog(t, full[:1])
	if _, err := store.Upgrade(ctx); err != nil {
		t.Fatalf("initial upgrade: %v", err)
	}
	insertEvent(t, store, []byte{0x01}, `{"tags":[["e","abc123"],["e","abc123"],["p","NotHex"]]}`)
	if _, err := store.DB().Exec(
		"INSERT INTO tag (event_id, name, value) VALUES (?, ?, ?)",
		[]byte{0x01}, "e", []byte("stale")); err != nil {
		t.Fatalf("insert stale tag: %v", err)
	}

	var calls [][2]int64
	swapCatalog(t, full)
	version, err := store.Upgrade(ctx, WithProgress(func(processed, total int64) {
		calls = append(calls, [2]int64{processed, total})
	}), WithLogWriter(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if version != 4 {
		t.Fatalf("expected version 4, got %d", version)
	}

	if rows := queryInt64(t, store, "SELECT COUNT(*) FROM tag"); rows != 2 {
		t.Fatalf("expected 2 tag rows after rebuild, got %d", rows)
	}
	if stale := queryInt64(t, store, "SELECT COUNT(*) FROM tag WHERE value = ?", []byte("stale")); stale != 0 {
		t.Fatal("expected pre-rebuild tag rows to be replaced")
	}

	wantHex, err := hex.DecodeString("abc123")
	if err != nil {
		t.Fatalf("decode expected value: %v", err)
	}
	if n := queryInt64(t, store,
		"SELECT COUNT(*) FROM tag WHERE name = 'e' AND value_hex = ? AND value IS NULL", wantHex); n != 1 {
		t.Fatalf("expected one hex-packed e tag, got %d", n)
	}
	if n := queryInt64(t, store,
		"SELECT COUNT(*) FROM tag WHERE name = 'p' AND value = ? AND value_hex IS NULL", []byte("NotHex")); n != 1 {
		t.Fatalf("expected one verbatim p tag, got %d", n)
	}

	if len(calls) != 1 || calls[0] != [2]int64{1, 1} {
		t.Fatalf("expected progress (1, 1), got %v", calls)
	}
}

func TestRebuildTagsHexRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Upgrade(ctx); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	insertEvent(t, store, []byte{0x01}, `{"tags":[["e","deadbeef"],["p","DeadBeef"]]}`)

	if err := store.rebuildTags(ctx, nil); err != nil {
		t.Fatalf("rebuild tags: %v", err)
	}

	var packed []byte
	if err := store.DB().QueryRow("SELECT value_hex FROM tag WHERE name = 'e'").Scan(&packed); err != nil {
		t.Fatalf("read packed value: %v", err)
	}
	if len(packed) != 4 {
		t.Fatalf("expected 4 decoded bytes, got %d", len(packed))
	}
	if got := hex.EncodeToString(packed); got != "deadbeef" {
		t.Fatalf("re-encoding lost information: got %q", got)
	}

	// Mixed case does not survive a decode/encode round trip, so it must be
	// stored verbatim.
	var verbatim []byte
	if err := store.DB().QueryRow("SELECT value FROM tag WHERE name = 'p'").Scan(&verbatim); err != nil {
		t.Fatalf("read verbatim value: %v", err)
	}
	if string(verbatim) != "DeadBeef" {
		t.Fatalf("expected verbatim value, got %q", verbatim)
	}
}

func TestRebuildTagsDiscardsUnindexableTags(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Upgrade(ctx); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	insertEvent(t, store, []byte{0x01}, `{"tags":[["x"],["expiration","1700000000"],["e","ab12"]]}`)

	if err := store.rebuildTags(ctx, nil); err != nil {
		t.Fatalf("rebuild tags: %v", err)
	}
	if rows := queryInt64(t, store, "SELECT COUNT(*) FROM tag"); rows != 1 {
		t.Fatalf("expected only the single-char tag to survive, got %d rows", rows)
	}
	if n := queryInt64(t, store, "SELECT COUNT(*) FROM tag WHERE name = 'e'"); n != 1 {
		t.Fatalf("expected the e tag row, got %d", n)
	}
}

func TestRebuildTagsOddLengthHexStoredVerbatim(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Upgrade(ctx); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	insertEvent(t, store, []byte{0x01}, `{"tags":[["e","abc"]]}`)

	if err := store.rebuildTags(ctx, nil); err != nil {
		t.Fatalf("rebuild tags: %v", err)
	}
	if n := queryInt64(t, store,
		"SELECT COUNT(*) FROM tag WHERE name = 'e' AND value = ? AND value_hex IS NULL", []byte("abc")); n != 1 {
		t.Fatalf("expected odd-length value stored verbatim, got %d matching rows", n)
	}
}

func TestRebuildTagsMalformedContentAborts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Upgrade(ctx); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	insertEvent(t, store, []byte{0x01}, `{"tags":[["e","ab12"]]}`)
	if err := store.rebuildTags(ctx, nil); err != nil {
		t.Fatalf("seed rebuild: %v", err)
	}

	insertEvent(t, store, []byte{0x02}, `{"tags":[`)
	if err := store.rebuildTags(ctx, nil); err == nil {
		t.Fatal("expected malformed content to abort the rebuild")
	}

	// The aborted rebuild must leave the previous rows committed earlier.
	if rows := queryInt64(t, store, "SELECT COUNT(*) FROM tag"); rows != 1 {
		t.Fatalf("expected pre-rebuild tag rows to survive the abort, got %d", rows)
	}
}

func TestRebuildTagsReportsProgressPerEvent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Upgrade(ctx); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	insertEvent(t, store, []byte{0x01}, `{"tags":[["e","ab12"]]}`)
	insertEvent(t, store, []byte{0x02}, `{"tags":[]}`)

	var calls [][2]int64
	if err := store.rebuildTags(ctx, func(processed, total int64) {
		calls = append(calls, [2]int64{processed, total})
	}); err != nil {
		t.Fatalf("rebuild tags: %v", err)
	}

	want := [][2]int64{{1, 2}, {2, 2}}
	if len(calls) != len(want) {
		t.Fatalf("expected %d progress calls, got %v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("progress call %d = %v, want %v", i, calls[i], want[i])
		}
	}
}
