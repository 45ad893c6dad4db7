package state

import (
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
)

// UnknownDevice is the bucket for events that arrive without a device.
const UnknownDevice = "unknown"

// DefaultMaxEventsPerDevice bounds each device's history in memory.
const DefaultMaxEventsPerDevice = 1000

// Query selects stored events. Zero fields do not filter.
type Query struct {
	Device string
	// Since and Until bound event time inclusively. Events whose
	// timestamp cannot be parsed are excluded when either bound is set.
	Since time.Time
	Until time.Time
	// Limit is the maximum number of events returned, newest first.
	// 0 means all.
	Limit int
}

// Matches reports whether e satisfies every set field of q except Limit.
func (q Query) Matches(e events.Event) bool {
	if q.Device != "" && e.Device != q.Device {
		return false
	}
	if q.Since.IsZero() && q.Until.IsZero() {
		return true
	}
	at, ok := e.Time()
	if !ok {
		return false
	}
	if !q.Since.IsZero() && at.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && at.After(q.Until) {
		return false
	}
	return true
}

// DeviceSummary describes one device's activity.
type DeviceSummary struct {
	Device     string              `json:"device"`
	LastSeen   time.Time           `json:"lastSeen"`
	EventCount int                 `json:"eventCount"`
	KindCounts map[events.Kind]int `json:"kindCounts"`
}

type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusIdle    DeviceStatus = "idle"
	StatusOffline DeviceStatus = "offline"
)

const (
	onlineWithin = 5 * time.Minute
	idleWithin   = time.Hour
)

// Status classifies the device by how recently it reported.
func (d DeviceSummary) Status() DeviceStatus {
	return d.statusAt(time.Now())
}

func (d DeviceSummary) statusAt(now time.Time) DeviceStatus {
	if d.LastSeen.IsZero() {
		return StatusOffline
	}
	elapsed := now.Sub(d.LastSeen)
	switch {
	case elapsed <= onlineWithin:
		return StatusOnline
	case elapsed <= idleWithin:
		return StatusIdle
	default:
		return StatusOffline
	}
}

// Alarms is the number of error and warning events seen.
func (d DeviceSummary) Alarms() int {
	return d.KindCounts[events.KindError] + d.KindCounts[events.KindWarning]
}

// TruncateDeviceID shortens id for narrow columns, suffixing "..." when cut.
func TruncateDeviceID(id string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	r := []rune(id)
	if len(r) <= maxLen {
		return id
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// DailySummary aggregates one UTC day of fleet activity.
type DailySummary struct {
	Date       string              `json:"date"`
	EventCount int                 `json:"eventCount"`
	Devices    int                 `json:"devices"`
	KindCounts map[events.Kind]int `json:"kindCounts"`
}
