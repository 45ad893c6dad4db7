package tui

import (
	"strings"
	"testing"

	"github.com/nixlim/fleetwatch/internal/config"
)

func TestRenderStats_Empty(t *testing.T) {
	m := NewModel(config.DefaultConfig(), WithStartView(ViewStats))
	m.width = 120
	m.height = 40

	view := m.View()
	for _, want := range []string{"[Stats]", "Devices", "No kind data", "No alarms"} {
		if !strings.Contains(view, want) {
			t.Errorf("empty stats view missing %q", want)
		}
	}
}

func TestRenderStats_WithData(t *testing.T) {
	m := NewModel(config.DefaultConfig(), WithStartView(ViewStats), WithStoreProvider(fleetFixture()))
	m.width = 120
	m.height = 40

	view := stripAnsi(m.View())
	for _, want := range []string{"Online:  2", "Events by Kind", "Errors", "Top Alarming Devices", "gw-01", "(1 err, 0 warn)", "(0 err, 1 warn)"} {
		if !strings.Contains(view, want) {
			t.Errorf("stats view missing %q:\n%s", want, view)
		}
	}
}

func TestRenderStats_SelectedDevice(t *testing.T) {
	m := NewModel(config.DefaultConfig(), WithStartView(ViewStats), WithStoreProvider(fleetFixture()))
	m.width = 120
	m.height = 40
	m.selectedDevice = "gw-02"

	view := stripAnsi(m.renderStats())
	if strings.Contains(view, "(1 err, 0 warn)") {
		t.Errorf("stats for gw-02 should not include gw-01:\n%s", view)
	}
	if !strings.Contains(view, "Device: gw-02") {
		t.Error("header should name the selected device")
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		ratio  float64
		filled int
	}{
		{0, 0},
		{0.5, 10},
		{1, 20},
		{-1, 0},
		{2, 20},
	}
	for _, tt := range tests {
		bar := stripAnsi(renderProgressBar(tt.ratio, 20))
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("renderProgressBar(%v) filled %d cells, want %d", tt.ratio, got, tt.filled)
		}
		if got := len([]rune(bar)); got != 20 {
			t.Errorf("renderProgressBar(%v) width = %d, want 20", tt.ratio, got)
		}
	}
}
