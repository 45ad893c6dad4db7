package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	previewMaxLen = 120

	genericPreview = "Event data"
	parsingError   = "Event data (parsing error)"
)

// FormatPayloadPreview renders a short human-readable label for a payload
// that came without a message. It never panics.
func FormatPayloadPreview(payload any) string {
	return defaultBundler.preview(payload)
}

func (b *Bundler) preview(payload any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			b.logf("WARNING: payload preview failed: %v", r)
			out = parsingError
		}
	}()
	return previewPayload(payload)
}

func previewPayload(payload any) string {
	switch p := payload.(type) {
	case nil:
		return genericPreview
	case string:
		s := strings.TrimSpace(p)
		if s == "" {
			return genericPreview
		}
		return truncate(s, previewMaxLen)
	case []any:
		return fmt.Sprintf("%d items", len(p))
	case bool, float64, float32, int, int64, json.Number:
		return fmt.Sprintf("%v", p)
	}

	m, ok := asMap(payload)
	if !ok {
		return genericPreview
	}
	for _, rule := range previewRules {
		if rule.match(m) {
			return rule.render(m)
		}
	}
	return fieldSummary(m)
}

// previewRule is one step of the preview waterfall. Rules are tried in
// order and the first match renders the label.
type previewRule struct {
	name   string
	match  func(m map[string]any) bool
	render func(m map[string]any) string
}

var previewRules = []previewRule{
	{
		name:   "message",
		match:  func(m map[string]any) bool { return stringField(m, "message") != "" },
		render: func(m map[string]any) string { return truncate(stringField(m, "message"), previewMaxLen) },
	},
	{
		name:   "summary",
		match:  func(m map[string]any) bool { return stringField(m, "summary") != "" },
		render: func(m map[string]any) string { return truncate(stringField(m, "summary"), previewMaxLen) },
	},
	{
		name: "modules_processed list",
		match: func(m map[string]any) bool {
			return len(moduleNames(listField(m, "modules_processed"))) > 0
		},
		render: func(m map[string]any) string {
			return renderModules(moduleNames(listField(m, "modules_processed")))
		},
	},
	{
		name: "modules_processed count",
		match: func(m map[string]any) bool {
			_, ok := numberField(m, "modules_processed")
			return ok
		},
		render: func(m map[string]any) string {
			if names := moduleNames(listField(m, "enabled_modules")); len(names) > 0 {
				return renderModules(names)
			}
			n, _ := numberField(m, "modules_processed")
			return fmt.Sprintf("%d modules processed", int64(n))
		},
	},
	{
		name: "metadata.enabledModules",
		match: func(m map[string]any) bool {
			return len(moduleNames(nestedList(m, "metadata", "enabledModules"))) > 0
		},
		render: func(m map[string]any) string {
			return renderModules(moduleNames(nestedList(m, "metadata", "enabledModules")))
		},
	},
	{
		name: "moduleCount",
		match: func(m map[string]any) bool {
			_, ok := numberField(m, "moduleCount")
			return ok
		},
		render: func(m map[string]any) string {
			if names := moduleNames(listField(m, "modules")); len(names) > 0 {
				return renderModules(names)
			}
			n, _ := numberField(m, "moduleCount")
			return fmt.Sprintf("%d modules reported", int64(n))
		},
	},
	{
		name: "modules mapping",
		match: func(m map[string]any) bool {
			mods, ok := asMap(m["modules"])
			return ok && len(mods) > 0
		},
		render: func(m map[string]any) string {
			mods, _ := asMap(m["modules"])
			return renderModules(sortedKeys(mods))
		},
	},
	{
		name: "truncated marker",
		match: func(m map[string]any) bool {
			return boolField(m, "_sanitized") || boolField(m, "_truncated") || boolField(m, "truncated")
		},
		render: func(m map[string]any) string {
			for _, k := range []string{"original_size", "originalSize", "_original_size"} {
				if n, ok := numberField(m, k); ok && n > 0 {
					return fmt.Sprintf("Large payload (%s, truncated)", humanize.Bytes(uint64(n)))
				}
			}
			return "Large payload (truncated)"
		},
	},
	{
		name: "description",
		match: func(m map[string]any) bool {
			return firstString(m, "description", "title", "event_message") != ""
		},
		render: func(m map[string]any) string {
			return truncate(firstString(m, "description", "title", "event_message"), previewMaxLen)
		},
	},
	{
		name:  "installs",
		match: func(m map[string]any) bool { return hasAny(m, installsKeys...) },
		render: func(m map[string]any) string {
			for _, k := range installsKeys {
				if items, ok := m[k].([]any); ok {
					return fmt.Sprintf("Installs data reported (%d items)", len(items))
				}
			}
			return "Installs data reported"
		},
	},
	{
		name:   "device",
		match:  func(m map[string]any) bool { return hasAny(m, "serial_number", "serialNumber", "device_id", "deviceId") },
		render: func(map[string]any) string { return "Device information reported" },
	},
	{
		name:   "session",
		match:  func(m map[string]any) bool { return hasAny(m, "session_id", "sessionId") },
		render: func(map[string]any) string { return "Session event" },
	},
	{
		name:  "client version",
		match: func(m map[string]any) bool { return firstScalar(m, "client_version", "clientVersion") != "" },
		render: func(m map[string]any) string {
			return "Client version " + firstScalar(m, "client_version", "clientVersion")
		},
	},
}

var installsKeys = []string{"installs", "managed_installs", "pending_installs"}

// fieldSummary is the last resort: describe the shape, never dump JSON.
func fieldSummary(m map[string]any) string {
	keys := sortedKeys(m)
	switch {
	case len(keys) == 0:
		return genericPreview
	case len(keys) <= 3:
		return genericPreview + ": " + strings.Join(keys, ", ")
	default:
		return fmt.Sprintf("%s (%d fields)", genericPreview, len(keys))
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	}
	return nil, false
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(m, k); s != "" {
			return s
		}
	}
	return ""
}

// firstScalar is like firstString but also renders numbers.
func firstScalar(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64, int, int64, json.Number:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

func listField(m map[string]any, key string) []any {
	l, _ := m[key].([]any)
	return l
}

func nestedList(m map[string]any, outer, inner string) []any {
	sub, ok := asMap(m[outer])
	if !ok {
		return nil
	}
	return listField(sub, inner)
}

func numberField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func boolField(m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncate shortens s to at most maxLen runes, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
