package storage

import (
	"testing"
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
)

func TestMaintenance_AggregatesAndPrunes(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	now := time.Now().UTC()
	old := now.AddDate(0, 0, -40).Truncate(24 * time.Hour).Add(12 * time.Hour)
	insertEvents(t, store.db,
		testEvent("old-1", "mac-01", events.KindError, old),
		testEvent("old-2", "mac-01", events.KindError, old.Add(time.Minute)),
		testEvent("old-3", "mac-02", events.KindInfo, old),
		testEvent("fresh", "mac-01", events.KindInfo, now),
	)

	if err := store.runMaintenanceCycle(30, now); err != nil {
		t.Fatalf("runMaintenanceCycle failed: %v", err)
	}

	if n := countRows(t, store.db, "SELECT COUNT(*) FROM events"); n != 1 {
		t.Errorf("events after prune: want 1, got %d", n)
	}

	oldDay := old.Format(time.DateOnly)
	if n := countRows(t, store.db, "SELECT count FROM daily_counts WHERE date = ? AND device = ? AND kind = ?",
		oldDay, "mac-01", "error"); n != 2 {
		t.Errorf("rolled-up mac-01 errors: want 2, got %d", n)
	}

	got := store.DailySummaries(60)
	var found bool
	for _, d := range got {
		if d.Date == oldDay {
			found = true
			if d.EventCount != 3 || d.Devices != 2 {
				t.Errorf("pruned day: want 3 events on 2 devices, got %+v", d)
			}
		}
	}
	if !found {
		t.Errorf("pruned day %s missing from summaries %+v", oldDay, got)
	}
}

func TestMaintenance_RollUpIsAdditive(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	now := time.Now().UTC()
	old := now.AddDate(0, 0, -40).Truncate(24 * time.Hour).Add(12 * time.Hour)

	insertEvents(t, store.db, testEvent("a", "mac-01", events.KindInfo, old))
	if err := store.runMaintenanceCycle(30, now); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	insertEvents(t, store.db, testEvent("b", "mac-01", events.KindInfo, old.Add(time.Minute)))
	if err := store.runMaintenanceCycle(30, now); err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	if n := countRows(t, store.db, "SELECT count FROM daily_counts WHERE device = ?", "mac-01"); n != 2 {
		t.Errorf("daily count after two cycles: want 2, got %d", n)
	}
}

func TestMaintenance_NoDataToAggregate(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	if err := store.runMaintenanceCycle(30, time.Now()); err != nil {
		t.Fatalf("runMaintenanceCycle on empty DB failed: %v", err)
	}
	if n := countRows(t, store.db, "SELECT COUNT(*) FROM daily_counts"); n != 0 {
		t.Errorf("daily_counts: want 0 rows, got %d", n)
	}
}

func TestMaintenance_KeepsDeviceRows(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	now := time.Now().UTC()
	insertEvents(t, store.db, testEvent("a", "mac-gone", events.KindInfo, now.AddDate(0, 0, -40)))
	if err := store.runMaintenanceCycle(30, now); err != nil {
		t.Fatalf("runMaintenanceCycle failed: %v", err)
	}

	if n := countRows(t, store.db, "SELECT event_count FROM devices WHERE device = ?", "mac-gone"); n != 1 {
		t.Errorf("device row should survive pruning with its lifetime count, got %d", n)
	}
}
