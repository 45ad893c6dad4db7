package state

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nixlim/fleetwatch/internal/events"
)

// Store is the interface for the event store.
// All methods must be thread-safe.
type Store interface {
	// AddEvent stores e and notifies listeners. It returns false when an
	// event with the same ID is already stored. Events without an ID get a
	// random one; events without a device go under UnknownDevice.
	AddEvent(e events.Event) bool

	// GetEvent returns the stored event with the given ID.
	GetEvent(id events.ID) (events.Event, bool)

	// Events returns the events matching q, newest first.
	Events(q Query) []events.Event

	// ListDevices returns a summary per device, most recently seen first.
	ListDevices() []DeviceSummary

	// OnEvent registers a listener called after every stored event.
	OnEvent(fn EventListener)

	// DailySummaries returns per-day totals for the last days days,
	// newest first.
	DailySummaries(days int) []DailySummary

	// DroppedWrites is the number of persistence writes that were lost.
	DroppedWrites() int64

	Close() error
}

// EventListener is a callback invoked after a new event is stored.
// Listeners are called outside the store lock and must not block.
type EventListener func(e events.Event)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithMaxEventsPerDevice caps the events kept per device. Older events are
// evicted first. Non-positive values keep the default.
func WithMaxEventsPerDevice(n int) Option {
	return func(ms *MemoryStore) {
		if n > 0 {
			ms.maxPerDevice = n
		}
	}
}

type deviceLog struct {
	events     []events.Event
	lastSeen   time.Time
	total      int
	kindCounts map[events.Kind]int
}

// MemoryStore is a thread-safe in-memory implementation of Store.
// Events are indexed by device and by ID.
type MemoryStore struct {
	mu             sync.RWMutex
	devices        map[string]*deviceLog
	byID           map[events.ID]events.Event
	maxPerDevice   int
	eventListeners []EventListener
	now            func() time.Time
}

// NewMemoryStore creates a new empty MemoryStore ready for use.
func NewMemoryStore(opts ...Option) *MemoryStore {
	ms := &MemoryStore{
		devices:      make(map[string]*deviceLog),
		byID:         make(map[events.ID]events.Event),
		maxPerDevice: DefaultMaxEventsPerDevice,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

func (ms *MemoryStore) OnEvent(fn EventListener) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.eventListeners = append(ms.eventListeners, fn)
}

// Normalize fills the fields every stored event must carry: an ID, a device
// and a timestamp. The kind defaults to info.
func Normalize(e events.Event, now time.Time) events.Event {
	if e.ID == "" {
		e.ID = events.ID(uuid.NewString())
	}
	if e.Device == "" {
		log.Printf("WARNING: event %s received without device, storing under %q", e.ID, UnknownDevice)
		e.Device = UnknownDevice
	}
	if e.Kind == "" {
		e.Kind = events.KindInfo
	}
	if e.TS == "" {
		e.TS = events.FormatTimestamp(now)
	}
	return e
}

func (ms *MemoryStore) AddEvent(e events.Event) bool {
	stored, ok := ms.add(Normalize(e, ms.now()))
	if !ok {
		return false
	}

	ms.mu.RLock()
	listeners := ms.eventListeners
	ms.mu.RUnlock()

	for _, fn := range listeners {
		fn(stored)
	}
	return true
}

// add stores an already normalized event without notifying listeners.
func (ms *MemoryStore) add(e events.Event) (events.Event, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, dup := ms.byID[e.ID]; dup {
		return events.Event{}, false
	}

	d, ok := ms.devices[e.Device]
	if !ok {
		d = &deviceLog{kindCounts: make(map[events.Kind]int)}
		ms.devices[e.Device] = d
	}

	d.events = append(d.events, e)
	d.total++
	d.kindCounts[e.Kind]++
	ms.byID[e.ID] = e

	seen, valid := e.Time()
	if !valid {
		seen = ms.now()
	}
	if seen.After(d.lastSeen) {
		d.lastSeen = seen
	}

	if over := len(d.events) - ms.maxPerDevice; over > 0 {
		for _, old := range d.events[:over] {
			delete(ms.byID, old.ID)
		}
		d.events = append([]events.Event(nil), d.events[over:]...)
	}
	return e, true
}

// Restore loads previously persisted events without notifying listeners.
// Duplicates are skipped. It returns the number of events added.
func (ms *MemoryStore) Restore(evts []events.Event) int {
	n := 0
	for _, e := range evts {
		if _, ok := ms.add(Normalize(e, ms.now())); ok {
			n++
		}
	}
	return n
}

func (ms *MemoryStore) GetEvent(id events.ID) (events.Event, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	e, ok := ms.byID[id]
	return e, ok
}

func (ms *MemoryStore) Events(q Query) []events.Event {
	ms.mu.RLock()
	names := make([]string, 0, len(ms.devices))
	for name := range ms.devices {
		if q.Device == "" || name == q.Device {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []events.Event
	for _, name := range names {
		for _, e := range ms.devices[name].events {
			if q.Matches(e) {
				out = append(out, e)
			}
		}
	}
	ms.mu.RUnlock()

	SortNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if out == nil {
		out = []events.Event{}
	}
	return out
}

func (ms *MemoryStore) ListDevices() []DeviceSummary {
	ms.mu.RLock()
	result := make([]DeviceSummary, 0, len(ms.devices))
	for name, d := range ms.devices {
		counts := make(map[events.Kind]int, len(d.kindCounts))
		for k, v := range d.kindCounts {
			counts[k] = v
		}
		result = append(result, DeviceSummary{
			Device:     name,
			LastSeen:   d.lastSeen,
			EventCount: d.total,
			KindCounts: counts,
		})
	}
	ms.mu.RUnlock()

	SortDevices(result)
	return result
}

// SortDevices orders summaries most recently seen first, then by name.
func SortDevices(ds []DeviceSummary) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].LastSeen.Equal(ds[j].LastSeen) {
			return ds[i].LastSeen.After(ds[j].LastSeen)
		}
		return ds[i].Device < ds[j].Device
	})
}

func (ms *MemoryStore) DailySummaries(days int) []DailySummary {
	cutoff := ms.now().UTC().AddDate(0, 0, -days).Format(time.DateOnly)

	type dayAcc struct {
		sum     DailySummary
		devices map[string]bool
	}
	byDate := make(map[string]*dayAcc)

	ms.mu.RLock()
	for name, d := range ms.devices {
		for _, e := range d.events {
			at, ok := e.Time()
			if !ok {
				continue
			}
			date := at.UTC().Format(time.DateOnly)
			if date < cutoff {
				continue
			}
			acc, ok := byDate[date]
			if !ok {
				acc = &dayAcc{
					sum:     DailySummary{Date: date, KindCounts: make(map[events.Kind]int)},
					devices: make(map[string]bool),
				}
				byDate[date] = acc
			}
			acc.sum.EventCount++
			acc.sum.KindCounts[e.Kind]++
			acc.devices[name] = true
		}
	}
	ms.mu.RUnlock()

	result := make([]DailySummary, 0, len(byDate))
	for _, acc := range byDate {
		acc.sum.Devices = len(acc.devices)
		result = append(result, acc.sum)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date > result[j].Date })
	return result
}

// Len returns the number of events held in memory.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.byID)
}

func (ms *MemoryStore) DroppedWrites() int64 { return 0 }

func (ms *MemoryStore) Close() error { return nil }

// SortNewestFirst orders evts by timestamp descending, in place. Events
// with unparseable timestamps go last; ties keep their relative order.
func SortNewestFirst(evts []events.Event) {
	type timed struct {
		e     events.Event
		at    time.Time
		valid bool
	}
	tmp := make([]timed, len(evts))
	for i, e := range evts {
		at, ok := e.Time()
		tmp[i] = timed{e: e, at: at, valid: ok}
	}
	sort.SliceStable(tmp, func(i, j int) bool {
		if tmp[i].valid != tmp[j].valid {
			return tmp[i].valid
		}
		return tmp[i].at.After(tmp[j].at)
	})
	for i := range tmp {
		evts[i] = tmp[i].e
	}
}
