package events

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatPayloadPreview(t *testing.T) {
	long := strings.Repeat("x", 200)

	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"nil", nil, "Event data"},
		{"empty string", "   ", "Event data"},
		{"plain string", "  rebooted  ", "rebooted"},
		{"long string", long, strings.Repeat("x", 117) + "..."},
		{"list", []any{1.0, 2.0, 3.0}, "3 items"},
		{"number", 42.0, "42"},
		{"bool", true, "true"},
		{"message field", map[string]any{"message": "disk check ok", "summary": "ignored"}, "disk check ok"},
		{"summary field", map[string]any{"summary": "3 updates applied"}, "3 updates applied"},
		{"modules_processed names", map[string]any{"modules_processed": []any{"hardware", "network"}}, "Hardware, Network data reported"},
		{"modules_processed objects", map[string]any{"modules_processed": []any{map[string]any{"name": "managed_installs"}}}, "Managed Installs data reported"},
		{"modules_processed many", map[string]any{"modules_processed": []any{"a", "b", "c", "d"}}, "4 modules data reported"},
		{"modules_processed count", map[string]any{"modules_processed": 7.0}, "7 modules processed"},
		{"modules_processed count with enabled", map[string]any{"modules_processed": 2.0, "enabled_modules": []any{"security"}}, "Security data reported"},
		{"metadata enabledModules", map[string]any{"metadata": map[string]any{"enabledModules": []any{"inventory"}}}, "Inventory data reported"},
		{"moduleCount", map[string]any{"moduleCount": 5.0}, "5 modules reported"},
		{"moduleCount with modules", map[string]any{"moduleCount": 1.0, "modules": []any{"profiles"}}, "Profiles data reported"},
		{"modules mapping", map[string]any{"modules": map[string]any{"network": 1.0, "hardware": 2.0}}, "Hardware, Network data reported"},
		{"truncated with size", map[string]any{"_truncated": true, "original_size": 2048000.0}, "Large payload (2.0 MB, truncated)"},
		{"truncated no size", map[string]any{"_sanitized": true}, "Large payload (truncated)"},
		{"description", map[string]any{"description": "Nightly scan"}, "Nightly scan"},
		{"title", map[string]any{"title": "Policy applied"}, "Policy applied"},
		{"installs list", map[string]any{"managed_installs": []any{"a", "b"}}, "Installs data reported (2 items)"},
		{"installs object", map[string]any{"installs": map[string]any{}}, "Installs data reported"},
		{"device info", map[string]any{"serial_number": "C02XYZ"}, "Device information reported"},
		{"session", map[string]any{"sessionId": "abc"}, "Session event"},
		{"client version", map[string]any{"client_version": "6.2.1"}, "Client version 6.2.1"},
		{"client version number", map[string]any{"clientVersion": 6.0}, "Client version 6"},
		{"empty object", map[string]any{}, "Event data"},
		{"few fields", map[string]any{"b": 1.0, "a": 2.0}, "Event data: a, b"},
		{"many fields", map[string]any{"a": 1.0, "b": 1.0, "c": 1.0, "d": 1.0}, "Event data (4 fields)"},
		{"string map", map[string]string{"message": "from tags"}, "from tags"},
		{"unknown type", struct{}{}, "Event data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatPayloadPreview(tt.payload)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatPayloadPreview_DecodedJSON(t *testing.T) {
	var payload any
	if err := json.Unmarshal([]byte(`{"modules_processed":["os_updates"],"status":"ok"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := FormatPayloadPreview(payload); got != "Os Updates data reported" {
		t.Errorf("expected %q, got %q", "Os Updates data reported", got)
	}
}

func TestFormatPayloadPreview_NeverDumpsJSON(t *testing.T) {
	payload := map[string]any{
		"alpha": map[string]any{"nested": []any{1.0, 2.0}},
		"beta":  "value",
		"gamma": 3.0,
		"delta": nil,
		"eps":   true,
	}
	got := FormatPayloadPreview(payload)
	if strings.ContainsAny(got, "{}[]") {
		t.Errorf("preview leaked raw structure: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
