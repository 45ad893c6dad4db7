package events

import "strings"

// Filter selects events before bundling.
type Filter struct {
	// Device limits events to one device. Empty means the whole fleet.
	Device string

	// Kinds is the set of kinds to keep. If empty, every event is kept;
	// otherwise events with unrecognized kinds are always dropped.
	Kinds map[Kind]bool

	// HideNoise drops heartbeat/ping/keepalive events.
	HideNoise bool
}

// ParseKinds reads a comma separated kind list such as "error,warning".
// Unknown names are ignored.
func ParseKinds(s string) map[Kind]bool {
	kinds := make(map[Kind]bool)
	for _, part := range strings.Split(s, ",") {
		k := Kind(strings.ToLower(strings.TrimSpace(part)))
		if k.Known() {
			kinds[k] = true
		}
	}
	return kinds
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Event) bool {
	if f.Device != "" && e.Device != f.Device {
		return false
	}
	if len(f.Kinds) > 0 {
		if !e.Kind.Known() || !f.Kinds[e.Kind] {
			return false
		}
	}
	if f.HideNoise && ShouldHideEvent(e) {
		return false
	}
	return true
}

// Apply returns the events that pass the filter, preserving order.
func (f Filter) Apply(evts []Event) []Event {
	out := make([]Event, 0, len(evts))
	for _, e := range evts {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
