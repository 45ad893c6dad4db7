package tui

import (
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

type mockStore struct {
	devices   []state.DeviceSummary
	events    []events.Event
	summaries []state.DailySummary
	dropped   int64
}

func (m *mockStore) GetEvent(id events.ID) (events.Event, bool) {
	for _, e := range m.events {
		if e.ID == id {
			return e, true
		}
	}
	return events.Event{}, false
}

func (m *mockStore) Events(q state.Query) []events.Event {
	var out []events.Event
	for _, e := range m.events {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockStore) ListDevices() []state.DeviceSummary        { return m.devices }
func (m *mockStore) DailySummaries(_ int) []state.DailySummary { return m.summaries }
func (m *mockStore) DroppedWrites() int64                      { return m.dropped }

func tsAgo(d time.Duration) string {
	return events.FormatTimestamp(time.Now().Add(-d))
}

// fleetFixture has two devices: gw-01 with two routine events that bundle
// and an error, gw-02 with a warning and a heartbeat.
func fleetFixture() *mockStore {
	now := time.Now()
	return &mockStore{
		devices: []state.DeviceSummary{
			{
				Device: "gw-02", LastSeen: now.Add(-5 * time.Second), EventCount: 2,
				KindCounts: map[events.Kind]int{events.KindWarning: 1, events.KindInfo: 1},
			},
			{
				Device: "gw-01", LastSeen: now.Add(-10 * time.Second), EventCount: 3,
				KindCounts: map[events.Kind]int{events.KindInfo: 1, events.KindSuccess: 1, events.KindError: 1},
			},
		},
		events: []events.Event{
			{ID: "e1", Device: "gw-01", Kind: events.KindInfo, TS: tsAgo(10 * time.Second), Message: "Network data reported"},
			{ID: "e2", Device: "gw-01", Kind: events.KindSuccess, TS: tsAgo(20 * time.Second), Message: "Sync completed",
				Payload: map[string]any{"items": 12}},
			{ID: "e3", Device: "gw-01", Kind: events.KindError, TS: tsAgo(30 * time.Second), Message: "Disk failure"},
			{ID: "e4", Device: "gw-02", Kind: events.KindWarning, TS: tsAgo(time.Minute), Message: "Battery low"},
			{ID: "e5", Device: "gw-02", Kind: events.KindInfo, TS: tsAgo(5 * time.Second), Message: "heartbeat"},
		},
	}
}
