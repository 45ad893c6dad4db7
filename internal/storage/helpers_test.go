package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
)

func newTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath, 30, 1000)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return store, dbPath
}

func testEvent(id, device string, kind events.Kind, at time.Time) events.Event {
	return events.Event{
		ID:      events.ID(id),
		Device:  device,
		Kind:    kind,
		TS:      events.FormatTimestamp(at),
		Message: "event " + id,
	}
}

// insertEvents writes directly to the database, bypassing the write queue.
func insertEvents(t *testing.T, db *sql.DB, evts ...events.Event) {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, e := range evts {
		if err := writeEvent(tx, e, time.Now()); err != nil {
			t.Fatalf("writeEvent(%s): %v", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return n
}

// waitForRows polls until the events table holds want rows.
func waitForRows(t *testing.T, db *sql.DB, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := countRows(t, db, "SELECT COUNT(*) FROM events")
		if got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("events table: want %d rows, got %d", want, got)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
