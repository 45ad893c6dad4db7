package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func evt(id, device string, kind events.Kind, offset time.Duration) events.Event {
	return events.Event{
		ID:     events.ID(id),
		Device: device,
		Kind:   kind,
		TS:     events.FormatTimestamp(base.Add(offset)),
	}
}

func TestMemoryStore_ImplementsStore(t *testing.T) {
	var store Store = NewMemoryStore()
	if err := store.Close(); err != nil {
		t.Errorf("expected Close() to return nil for MemoryStore, got %v", err)
	}
	if dropped := store.DroppedWrites(); dropped != 0 {
		t.Errorf("expected DroppedWrites() to return 0 for MemoryStore, got %d", dropped)
	}
}

func TestStateStore_IndexEventByDevice(t *testing.T) {
	store := NewMemoryStore()

	if !store.AddEvent(evt("1", "mac-01", events.KindInfo, 0)) {
		t.Fatal("expected first AddEvent to succeed")
	}
	store.AddEvent(evt("2", "mac-02", events.KindError, time.Second))

	got := store.Events(Query{Device: "mac-01"})
	if len(got) != 1 {
		t.Fatalf("expected 1 event for mac-01, got %d", len(got))
	}
	if got[0].ID != "1" {
		t.Errorf("expected event 1, got %q", got[0].ID)
	}
	if other := store.Events(Query{Device: "mac-03"}); len(other) != 0 {
		t.Errorf("expected no events for mac-03, got %d", len(other))
	}
}

func TestStateStore_DuplicateID(t *testing.T) {
	store := NewMemoryStore()
	first := evt("dup", "d1", events.KindInfo, 0)
	first.Message = "first"
	second := evt("dup", "d1", events.KindInfo, time.Minute)
	second.Message = "second"

	if !store.AddEvent(first) {
		t.Fatal("expected first add to succeed")
	}
	if store.AddEvent(second) {
		t.Error("expected duplicate add to be rejected")
	}
	e, ok := store.GetEvent("dup")
	if !ok || e.Message != "first" {
		t.Errorf("expected the first event to be kept, got %+v", e)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 stored event, got %d", store.Len())
	}
}

func TestStateStore_MissingFields(t *testing.T) {
	store := NewMemoryStore()
	fixed := base.Add(time.Hour)
	store.now = func() time.Time { return fixed }

	store.AddEvent(events.Event{Message: "orphan"})

	got := store.Events(Query{Device: UnknownDevice})
	if len(got) != 1 {
		t.Fatalf("expected 1 event under %q, got %d", UnknownDevice, len(got))
	}
	e := got[0]
	if e.ID == "" {
		t.Error("expected a generated id")
	}
	if e.Kind != events.KindInfo {
		t.Errorf("expected default kind info, got %q", e.Kind)
	}
	if e.TS != events.FormatTimestamp(fixed) {
		t.Errorf("expected receive time %q, got %q", events.FormatTimestamp(fixed), e.TS)
	}
	if _, ok := store.GetEvent(e.ID); !ok {
		t.Error("generated id should be retrievable")
	}
}

func TestStateStore_DistinctGeneratedIDs(t *testing.T) {
	store := NewMemoryStore()
	store.AddEvent(events.Event{Device: "d1"})
	store.AddEvent(events.Event{Device: "d1"})
	if store.Len() != 2 {
		t.Errorf("events without ids must not collide, got %d stored", store.Len())
	}
}

func TestStateStore_NewestFirstAndLimit(t *testing.T) {
	store := NewMemoryStore()
	store.AddEvent(evt("a", "d1", events.KindInfo, 0))
	store.AddEvent(evt("c", "d2", events.KindInfo, 2*time.Minute))
	store.AddEvent(evt("b", "d1", events.KindInfo, time.Minute))
	store.AddEvent(events.Event{ID: "bad", Device: "d1", Kind: events.KindInfo, TS: "garbage"})

	got := store.Events(Query{})
	want := []events.ID{"c", "b", "a", "bad"}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i].ID)
		}
	}

	limited := store.Events(Query{Limit: 2})
	if len(limited) != 2 || limited[0].ID != "c" || limited[1].ID != "b" {
		t.Errorf("expected [c b] with limit 2, got %v", limited)
	}
}

func TestStateStore_TimeBounds(t *testing.T) {
	store := NewMemoryStore()
	store.AddEvent(evt("a", "d1", events.KindInfo, 0))
	store.AddEvent(evt("b", "d1", events.KindInfo, time.Minute))
	store.AddEvent(evt("c", "d1", events.KindInfo, 2*time.Minute))
	store.AddEvent(events.Event{ID: "bad", Device: "d1", TS: "garbage"})

	got := store.Events(Query{Since: base.Add(time.Minute)})
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("since: expected [c b], got %v", got)
	}
	got = store.Events(Query{Until: base.Add(time.Minute)})
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("until: expected [b a], got %v", got)
	}
}

func TestStateStore_PerDeviceCap(t *testing.T) {
	store := NewMemoryStore(WithMaxEventsPerDevice(3))
	for i := 0; i < 5; i++ {
		store.AddEvent(evt(fmt.Sprintf("e%d", i), "d1", events.KindInfo, time.Duration(i)*time.Second))
	}
	store.AddEvent(evt("other", "d2", events.KindInfo, 0))

	got := store.Events(Query{Device: "d1"})
	if len(got) != 3 {
		t.Fatalf("expected 3 events after eviction, got %d", len(got))
	}
	if got[2].ID != "e2" {
		t.Errorf("expected oldest kept event e2, got %q", got[2].ID)
	}
	if _, ok := store.GetEvent("e0"); ok {
		t.Error("evicted event should not be retrievable")
	}
	if len(store.Events(Query{Device: "d2"})) != 1 {
		t.Error("cap on d1 must not affect d2")
	}

	devices := store.ListDevices()
	for _, d := range devices {
		if d.Device == "d1" && d.EventCount != 5 {
			t.Errorf("EventCount should count all received events, got %d", d.EventCount)
		}
	}
}

func TestStateStore_ListDevices(t *testing.T) {
	store := NewMemoryStore()
	store.AddEvent(evt("1", "old", events.KindError, 0))
	store.AddEvent(evt("2", "new", events.KindInfo, time.Hour))
	store.AddEvent(evt("3", "new", events.KindWarning, 2*time.Hour))
	store.AddEvent(evt("4", "new", events.KindInfo, 30*time.Minute))

	devices := store.ListDevices()
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	if devices[0].Device != "new" {
		t.Errorf("expected most recent device first, got %q", devices[0].Device)
	}
	if !devices[0].LastSeen.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("LastSeen should be the newest event time, got %s", devices[0].LastSeen)
	}
	if devices[0].EventCount != 3 {
		t.Errorf("expected 3 events, got %d", devices[0].EventCount)
	}
	if devices[0].KindCounts[events.KindInfo] != 2 || devices[0].Alarms() != 1 {
		t.Errorf("unexpected kind counts %v", devices[0].KindCounts)
	}

	devices[0].KindCounts[events.KindInfo] = 99
	if store.ListDevices()[0].KindCounts[events.KindInfo] != 2 {
		t.Error("ListDevices must return copies")
	}
}

func TestStateStore_OnEvent(t *testing.T) {
	store := NewMemoryStore()

	var got []events.Event
	store.OnEvent(func(e events.Event) {
		got = append(got, e)
	})

	store.AddEvent(evt("1", "d1", events.KindInfo, 0))
	store.AddEvent(evt("1", "d1", events.KindInfo, 0))
	store.AddEvent(events.Event{Device: "d1"})

	if len(got) != 2 {
		t.Fatalf("expected listener called twice, got %d", len(got))
	}
	if got[1].ID == "" {
		t.Error("listener should receive the normalized event")
	}
}

func TestStateStore_ListenerMayReadStore(t *testing.T) {
	store := NewMemoryStore()
	done := make(chan struct{}, 1)
	store.OnEvent(func(e events.Event) {
		_, _ = store.GetEvent(e.ID)
		done <- struct{}{}
	})
	store.AddEvent(evt("1", "d1", events.KindInfo, 0))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener deadlocked")
	}
}

func TestStateStore_Restore(t *testing.T) {
	store := NewMemoryStore()
	called := false
	store.OnEvent(func(events.Event) { called = true })

	n := store.Restore([]events.Event{
		evt("1", "d1", events.KindInfo, 0),
		evt("1", "d1", events.KindInfo, 0),
		evt("2", "d2", events.KindError, 0),
	})
	if n != 2 {
		t.Errorf("expected 2 restored events, got %d", n)
	}
	if called {
		t.Error("Restore must not notify listeners")
	}
}

func TestStateStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(WithMaxEventsPerDevice(50))
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.AddEvent(evt(fmt.Sprintf("%d-%d", n, j), fmt.Sprintf("d%d", n%3), events.KindInfo, time.Duration(j)*time.Second))
			}
		}(i)
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = store.Events(Query{Limit: 10})
				_ = store.ListDevices()
			}
		}()
	}
	wg.Wait()

	for _, d := range store.ListDevices() {
		if n := len(store.Events(Query{Device: d.Device})); n > 50 {
			t.Errorf("device %s holds %d events, cap is 50", d.Device, n)
		}
	}
}

func TestDeviceStatus(t *testing.T) {
	now := base.Add(24 * time.Hour)
	tests := []struct {
		lastSeen time.Time
		want     DeviceStatus
	}{
		{now.Add(-time.Minute), StatusOnline},
		{now.Add(-5 * time.Minute), StatusOnline},
		{now.Add(-30 * time.Minute), StatusIdle},
		{now.Add(-2 * time.Hour), StatusOffline},
		{time.Time{}, StatusOffline},
	}
	for _, tt := range tests {
		d := DeviceSummary{LastSeen: tt.lastSeen}
		if got := d.statusAt(now); got != tt.want {
			t.Errorf("lastSeen %s: expected %s, got %s", tt.lastSeen, tt.want, got)
		}
	}
}

func TestTruncateDeviceID(t *testing.T) {
	tests := []struct {
		id   string
		max  int
		want string
	}{
		{"mac-01", 10, "mac-01"},
		{"laptop-engineering-0042", 12, "laptop-en..."},
		{"abcdef", 3, "abc"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateDeviceID(tt.id, tt.max); got != tt.want {
			t.Errorf("TruncateDeviceID(%q, %d) = %q, want %q", tt.id, tt.max, got, tt.want)
		}
	}
}

func TestStateStore_DailySummaries(t *testing.T) {
	store := NewMemoryStore()
	store.now = func() time.Time { return base.Add(12 * time.Hour) }

	store.AddEvent(evt("1", "d1", events.KindInfo, 0))
	store.AddEvent(evt("2", "d2", events.KindError, time.Hour))
	store.AddEvent(evt("3", "d1", events.KindInfo, -24*time.Hour))
	store.AddEvent(evt("4", "d1", events.KindInfo, -30*24*time.Hour))
	store.AddEvent(events.Event{ID: "bad", Device: "d1", TS: "garbage"})

	got := store.DailySummaries(7)
	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %d: %+v", len(got), got)
	}
	today := got[0]
	if today.Date != "2026-03-02" {
		t.Errorf("expected newest day first, got %s", today.Date)
	}
	if today.EventCount != 2 || today.Devices != 2 {
		t.Errorf("expected 2 events on 2 devices, got %+v", today)
	}
	if today.KindCounts[events.KindError] != 1 {
		t.Errorf("expected 1 error, got %v", today.KindCounts)
	}
	if got[1].Date != "2026-03-01" || got[1].EventCount != 1 {
		t.Errorf("unexpected previous day %+v", got[1])
	}
}
