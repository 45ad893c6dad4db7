package events

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultWindow is the maximum distance from an anchor event for another
	// event to join its bundle.
	DefaultWindow = 2 * time.Minute

	// LegacyMaxResults is the output cap older dashboards applied.
	LegacyMaxResults = 50
)

// Bundler groups related events into view-ready digests. A Bundler holds
// only configuration; Bundle is safe for concurrent use.
type Bundler struct {
	window     time.Duration
	maxResults int
	logger     *log.Logger
}

// BundlerOption configures a Bundler.
type BundlerOption func(*Bundler)

// WithWindow sets the bundling window. Non-positive values keep the default.
func WithWindow(d time.Duration) BundlerOption {
	return func(b *Bundler) {
		if d > 0 {
			b.window = d
		}
	}
}

// WithMaxResults caps the number of returned events. 0 means no cap.
func WithMaxResults(n int) BundlerOption {
	return func(b *Bundler) {
		if n >= 0 {
			b.maxResults = n
		}
	}
}

// WithLogger sets the logger for payload diagnostics.
func WithLogger(l *log.Logger) BundlerOption {
	return func(b *Bundler) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBundler returns a Bundler with a two minute window and no output cap.
func NewBundler(opts ...BundlerOption) *Bundler {
	b := &Bundler{
		window: DefaultWindow,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var defaultBundler = NewBundler()

// BundleEvents bundles evts with the default settings.
func BundleEvents(evts []Event) []BundledEvent {
	return defaultBundler.Bundle(evts)
}

// timedEvent caches the parsed timestamp next to the event.
type timedEvent struct {
	Event
	at    time.Time
	valid bool
}

// Bundle deduplicates evts by ID, orders them newest first and merges
// routine same-device events that fall within the window of an anchor.
// Errors and warnings always stay on their own.
func (b *Bundler) Bundle(evts []Event) []BundledEvent {
	sorted := sortNewestFirst(dedupe(evts))
	result := make([]BundledEvent, 0, len(sorted))

	claimed := make([]bool, len(sorted))
	for i := range sorted {
		if claimed[i] {
			continue
		}
		claimed[i] = true
		anchor := sorted[i]
		members := []timedEvent{anchor}

		if anchor.valid {
			for j := i + 1; j < len(sorted); j++ {
				o := sorted[j]
				// Newest first, invalid timestamps last.
				if !o.valid || anchor.at.Sub(o.at) > b.window {
					break
				}
				if claimed[j] || o.Device != anchor.Device {
					continue
				}
				if !ShouldBundleTogether(anchor.Event, o.Event) {
					continue
				}
				claimed[j] = true
				members = append(members, o)
			}
		}

		if len(members) == 1 {
			result = append(result, b.single(anchor))
		} else {
			result = append(result, b.bundle(members))
		}

		if b.maxResults > 0 && len(result) >= b.maxResults {
			break
		}
	}
	return result
}

// Singles presents every event on its own, with the same ordering,
// deduplication and output cap as Bundle.
func (b *Bundler) Singles(evts []Event) []BundledEvent {
	sorted := sortNewestFirst(dedupe(evts))
	if b.maxResults > 0 && len(sorted) > b.maxResults {
		sorted = sorted[:b.maxResults]
	}
	result := make([]BundledEvent, len(sorted))
	for i, e := range sorted {
		result[i] = b.single(e)
	}
	return result
}

// dedupe keeps the first occurrence of each ID in input order. Events
// without an ID are all kept.
func dedupe(evts []Event) []Event {
	seen := make(map[ID]struct{}, len(evts))
	out := make([]Event, 0, len(evts))
	for _, e := range evts {
		if e.ID == "" {
			out = append(out, e)
			continue
		}
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// sortNewestFirst orders events by timestamp descending. Events whose
// timestamp cannot be parsed go last, in input order.
func sortNewestFirst(evts []Event) []timedEvent {
	out := make([]timedEvent, len(evts))
	for i, e := range evts {
		at, ok := e.Time()
		out[i] = timedEvent{Event: e, at: at, valid: ok}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.valid != b.valid {
			return a.valid
		}
		return a.at.After(b.at)
	})
	return out
}

// ShouldBundleTogether reports whether two events may share a bundle.
// Errors and warnings never merge; success, info and system chatter does.
func ShouldBundleTogether(a, b Event) bool {
	if isAlarm(a.Kind) || isAlarm(b.Kind) {
		return false
	}
	return isRoutine(a.Kind) && isRoutine(b.Kind)
}

func isAlarm(k Kind) bool {
	return k == KindError || k == KindWarning
}

func isRoutine(k Kind) bool {
	return k == KindSuccess || k == KindInfo || k == KindSystem
}

// PrimaryKind selects the kind a bundle is shown with:
// error, then warning, then success, then the first kind seen.
func PrimaryKind(kinds []Kind) Kind {
	if len(kinds) == 0 {
		return KindInfo
	}
	for _, want := range []Kind{KindError, KindWarning, KindSuccess} {
		for _, k := range kinds {
			if k == want {
				return want
			}
		}
	}
	return kinds[0]
}

func (b *Bundler) single(e timedEvent) BundledEvent {
	out := BundledEvent{
		Event:        e.Event,
		Details:      ExtractDetails([]Event{e.Event}),
		Count:        1,
		EventIDs:     []ID{e.ID},
		BundledKinds: []Kind{e.Kind},
	}
	out.Message = b.effectiveMessage(e.Event)
	return out
}

func (b *Bundler) bundle(members []timedEvent) BundledEvent {
	anchor := members[0]
	plain := make([]Event, len(members))
	ids := make([]ID, len(members))
	var kinds []Kind
	seenKind := make(map[Kind]bool)
	for i, m := range members {
		plain[i] = m.Event
		ids[i] = m.ID
		if !seenKind[m.Kind] {
			seenKind[m.Kind] = true
			kinds = append(kinds, m.Kind)
		}
	}

	out := BundledEvent{
		Event:        anchor.Event,
		Details:      ExtractDetails(plain),
		IsBundle:     true,
		Count:        len(members),
		EventIDs:     ids,
		BundledKinds: kinds,
	}
	out.ID = ID(bundleID(anchor.Device, anchor.at, ids))
	out.Kind = PrimaryKind(kinds)
	out.Message = b.bundleMessage(plain)
	return out
}

// bundleID derives a stable identifier from the device, the anchor time and
// the member IDs, so repeated calls over the same input agree.
func bundleID(device string, anchor time.Time, ids []ID) string {
	sortedIDs := make([]string, len(ids))
	for i, id := range ids {
		sortedIDs[i] = string(id)
	}
	sort.Strings(sortedIDs)
	sum := sha256.Sum256([]byte(strings.Join(sortedIDs, ",")))
	return fmt.Sprintf("bundle-%s-%d-%s", device, anchor.UnixMilli(), hex.EncodeToString(sum[:])[:12])
}

// IsBundleID reports whether id was produced for a bundle rather than
// taken from a source event.
func IsBundleID(id string) bool {
	return strings.HasPrefix(id, "bundle-")
}

func (b *Bundler) effectiveMessage(e Event) string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return b.preview(e.Payload)
}

func (b *Bundler) logf(format string, args ...any) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
	}
}
