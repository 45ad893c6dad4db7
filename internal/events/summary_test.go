package events

import (
	"testing"
	"time"
)

func summarize(evts ...Event) string {
	return NewBundler().bundleMessage(evts)
}

func TestBundleMessage(t *testing.T) {
	tests := []struct {
		name    string
		members []Event
		want    string
	}{
		{
			name: "data reports merged from messages",
			members: []Event{
				{Kind: KindInfo, Message: "Hardware data reported"},
				{Kind: KindInfo, Message: "Network, Security data reported"},
			},
			want: "Hardware, Network, Security data reported",
		},
		{
			name: "data reports with payload names",
			members: []Event{
				{Kind: KindInfo, Payload: map[string]any{"modules_processed": []any{"hardware"}}},
				{Kind: KindSuccess, Payload: map[string]any{"modules_processed": []any{"hardware", "profiles"}}},
			},
			want: "Hardware, Profiles data reported",
		},
		{
			name: "more than three modules",
			members: []Event{
				{Kind: KindInfo, Message: "Hardware, Network data reported"},
				{Kind: KindInfo, Message: "Security, Profiles data reported"},
			},
			want: "4 modules data reported",
		},
		{
			name: "mixed messages mine payload names",
			members: []Event{
				{Kind: KindInfo, Message: "Check-in complete", Payload: map[string]any{"enabled_modules": []any{"inventory"}}},
				{Kind: KindInfo, Message: "Agent started"},
			},
			want: "Inventory data reported",
		},
		{
			name: "modules mapping keys",
			members: []Event{
				{Kind: KindInfo, Message: "Check-in complete", Payload: map[string]any{"modules": map[string]any{"zeta": 1.0, "alpha": 1.0}}},
				{Kind: KindInfo, Message: "Agent started"},
			},
			want: "Alpha, Zeta data reported",
		},
		{
			name: "counts",
			members: []Event{
				{Kind: KindInfo, Message: "a"},
				{Kind: KindInfo, Message: "b"},
				{Kind: KindSuccess, Message: "c"},
			},
			want: "1 success event, 2 info events",
		},
		{
			name: "counts unknown kinds",
			members: []Event{
				{Kind: Kind("debug"), Message: "a"},
				{Kind: Kind("trace"), Message: "b"},
			},
			want: "2 events occurred",
		},
		{
			name: "duplicate names case insensitive",
			members: []Event{
				{Kind: KindInfo, Message: "Hardware data reported"},
				{Kind: KindInfo, Payload: map[string]any{"modules_processed": []any{"hardware"}}},
			},
			want: "Hardware data reported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summarize(tt.members...); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBundleMessage_ReportsWithoutNames(t *testing.T) {
	got := summarize(
		Event{Kind: KindInfo, Message: "Data collected"},
		Event{Kind: KindSuccess, Message: "5 modules reported"},
	)
	if got != "1 success event, 1 info event" {
		t.Errorf("expected counts fallback, got %q", got)
	}
}

func TestCountsSummary_Plurals(t *testing.T) {
	members := []Event{
		{Kind: KindSystem}, {Kind: KindSystem}, {Kind: KindInfo},
	}
	if got := countsSummary(members); got != "1 info event, 2 system events" {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestDisplayModuleName(t *testing.T) {
	tests := map[string]string{
		"hardware":          "Hardware",
		"managed_installs":  "Managed Installs",
		"os-updates":        "Os Updates",
		"  spaced__name  ":  "Spaced Name",
		"MDM":               "MDM",
		"already Titled Up": "Already Titled Up",
	}
	for in, want := range tests {
		if got := displayModuleName(in); got != want {
			t.Errorf("displayModuleName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBundleEvents_DataReportScenario(t *testing.T) {
	in := []Event{
		{ID: "1", Device: "mac-01", Kind: KindInfo, TS: FormatTimestamp(t0), Message: "Hardware data reported"},
		{ID: "2", Device: "mac-01", Kind: KindInfo, TS: FormatTimestamp(t0.Add(20 * time.Second)), Message: "Network data reported"},
		{ID: "3", Device: "mac-01", Kind: KindSuccess, TS: FormatTimestamp(t0.Add(40 * time.Second)), Message: "Security data reported"},
	}
	got := BundleEvents(in)
	if len(got) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(got))
	}
	if got[0].Message != "Security, Network, Hardware data reported" {
		t.Errorf("unexpected bundle message %q", got[0].Message)
	}
	if got[0].Kind != KindSuccess {
		t.Errorf("expected kind success, got %q", got[0].Kind)
	}
}
