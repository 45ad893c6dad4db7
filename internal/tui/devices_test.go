package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/nixlim/fleetwatch/internal/config"
	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

func TestRenderDeviceListPanel(t *testing.T) {
	m := NewModel(config.DefaultConfig(), WithStoreProvider(fleetFixture()))
	m.width = 160
	m.height = 40

	panel := stripAnsi(m.renderDeviceListPanel(80, 20))
	for _, want := range []string{"Devices", "[Fleet]", "Last seen", "gw-01", "gw-02", "online"} {
		if !strings.Contains(panel, want) {
			t.Errorf("device list missing %q:\n%s", want, panel)
		}
	}
}

func TestRenderDeviceListPanel_SelectedDevice(t *testing.T) {
	m := NewModel(config.DefaultConfig(), WithStoreProvider(fleetFixture()))
	m.selectedDevice = "gw-01"

	panel := stripAnsi(m.renderDeviceListPanel(80, 20))
	if !strings.Contains(panel, "[gw-01]") {
		t.Errorf("title should name the selected device:\n%s", panel)
	}
}

func TestRenderDeviceListPanel_ScrollsToCursor(t *testing.T) {
	store := &mockStore{}
	for i := range 30 {
		store.devices = append(store.devices, state.DeviceSummary{
			Device:   "dev-" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			LastSeen: time.Now(),
		})
	}
	m := NewModel(config.DefaultConfig(), WithStoreProvider(store))
	m.deviceCursor = 29

	panel := stripAnsi(m.renderDeviceListPanel(80, 12))
	if !strings.Contains(panel, store.devices[29].Device) {
		t.Errorf("cursor row should be visible:\n%s", panel)
	}
	if strings.Contains(panel, store.devices[0].Device) {
		t.Errorf("first row should have scrolled away:\n%s", panel)
	}
}

func TestFormatDeviceRow(t *testing.T) {
	now := time.Now()
	d := state.DeviceSummary{
		Device:     "gw-01",
		LastSeen:   now.Add(-3 * time.Minute),
		EventCount: 1234,
		KindCounts: map[events.Kind]int{events.KindError: 2, events.KindWarning: 1},
	}

	wide := stripAnsi(formatDeviceRow(d, 80, now))
	for _, want := range []string{"gw-01", "online", "3 minutes ago", "1,234", "3"} {
		if !strings.Contains(wide, want) {
			t.Errorf("wide row %q missing %q", wide, want)
		}
	}

	narrow := stripAnsi(formatDeviceRow(d, 40, now))
	if strings.Contains(narrow, "ago") {
		t.Errorf("narrow row should drop the last seen column: %q", narrow)
	}
}

func TestFormatLastSeen(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"never", time.Time{}, "never"},
		{"minutes", now.Add(-3 * time.Minute), "3 minutes ago"},
		{"hours", now.Add(-2 * time.Hour), "2 hours ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLastSeen(tt.t, now); got != tt.want {
				t.Errorf("formatLastSeen() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderStatus(t *testing.T) {
	for _, s := range []state.DeviceStatus{state.StatusOnline, state.StatusIdle, state.StatusOffline, "other"} {
		if got := stripAnsi(renderStatus(s)); got != string(s) {
			t.Errorf("renderStatus(%q) = %q", s, got)
		}
	}
}
