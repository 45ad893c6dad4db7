package events

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Kind is the coarse severity/category tag of a device event.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
	KindSystem  Kind = "system"
)

// AllKinds lists the recognized kinds in display order.
var AllKinds = []Kind{KindError, KindWarning, KindSuccess, KindInfo, KindSystem}

// Known reports whether k is one of the recognized kinds.
func (k Kind) Known() bool {
	switch k {
	case KindInfo, KindSuccess, KindWarning, KindError, KindSystem:
		return true
	}
	return false
}

// ID is an opaque event identifier. Upstream sources send it either as a
// JSON string or a JSON number; both decode to the same ID.
type ID string

// UnmarshalJSON accepts strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Event is a single device telemetry record as delivered by an event source.
type Event struct {
	ID      ID     `json:"id"`
	Device  string `json:"device"`
	Kind    Kind   `json:"kind"`
	TS      string `json:"ts"`
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Time parses TS on a best-effort basis. ok is false when TS is missing or
// not in any recognized layout; the returned time is then zero.
func (e Event) Time() (time.Time, bool) {
	return ParseTimestamp(e.TS)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// ParseTimestamp accepts RFC 3339 variants, naive date-times (read as UTC)
// and unix seconds or milliseconds written as digits.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	// Anything past year 33658 in seconds is really milliseconds.
	if n > 1e12 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}

// FormatTimestamp renders t in the canonical wire layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FailedItem is an item a device reported as failed in its payload.
type FailedItem struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Error       string `json:"error,omitempty"`
}

// WarningItem is an item a device reported with a warning in its payload.
type WarningItem struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Warning     string `json:"warning,omitempty"`
}

// Details holds error and warning indicators mined from event payloads.
type Details struct {
	ErrorMessages        []string      `json:"errorMessages,omitempty"`
	WarningMessages      []string      `json:"warningMessages,omitempty"`
	FailedItems          []FailedItem  `json:"failedItems,omitempty"`
	WarningItems         []WarningItem `json:"warningItems,omitempty"`
	HasExpandableDetails bool          `json:"hasExpandableDetails"`
}

// BundledEvent is a view-ready event: either a single input event or an
// aggregate of two or more related ones.
type BundledEvent struct {
	Event
	Details

	IsBundle     bool   `json:"isBundle"`
	Count        int    `json:"count"`
	EventIDs     []ID   `json:"eventIds"`
	BundledKinds []Kind `json:"bundledKinds"`
}
