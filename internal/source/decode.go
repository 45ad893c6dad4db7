// Package source subscribes to message brokers that carry device events and
// feeds them into the event store.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nixlim/fleetwatch/internal/events"
)

// ErrEmptyMessage is returned for a message with no body.
var ErrEmptyMessage = errors.New("empty message")

// record is one event as brokers deliver it. Agents disagree on field
// names, so the common spellings are all accepted.
type record struct {
	ID        events.ID       `json:"id"`
	EventID   events.ID       `json:"event_id"`
	Device    string          `json:"device"`
	DeviceID  string          `json:"device_id"`
	DeviceID2 string          `json:"deviceId"`
	Kind      events.Kind     `json:"kind"`
	Type      events.Kind     `json:"type"`
	TS        json.RawMessage `json:"ts"`
	Timestamp json.RawMessage `json:"timestamp"`
	Message   string          `json:"message"`
	Msg       string          `json:"msg"`
	Payload   any             `json:"payload"`
}

// envelope groups several records from one device.
type envelope struct {
	record
	Events   []record `json:"events"`
	Readings []record `json:"readings"`
}

// Decode parses a broker message: a single event object, a JSON array of
// them, or an envelope whose "events" or "readings" inherit the envelope's
// device, kind and timestamp.
func Decode(data []byte) ([]events.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	if data[0] == '[' {
		var recs []record
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decoding event array: %w", err)
		}
		out := make([]events.Event, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.event())
		}
		return out, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}

	children := env.Events
	if len(children) == 0 {
		children = env.Readings
	}
	if len(children) == 0 {
		return []events.Event{env.record.event()}, nil
	}

	parent := env.record.event()
	out := make([]events.Event, 0, len(children))
	for _, r := range children {
		e := r.event()
		if e.Device == "" {
			e.Device = parent.Device
		}
		if e.Kind == "" {
			e.Kind = parent.Kind
		}
		if e.TS == "" {
			e.TS = parent.TS
		}
		out = append(out, e)
	}
	return out, nil
}

func (r record) event() events.Event {
	return events.Event{
		ID:      firstNonEmpty(r.ID, r.EventID),
		Device:  firstNonEmpty(r.Device, r.DeviceID, r.DeviceID2),
		Kind:    firstNonEmpty(r.Kind, r.Type),
		TS:      firstNonEmpty(rawTimestamp(r.TS), rawTimestamp(r.Timestamp)),
		Message: firstNonEmpty(r.Message, r.Msg),
		Payload: r.Payload,
	}
}

// rawTimestamp turns a JSON string or number into the wire timestamp
// string. Numbers are unix seconds or milliseconds.
func rawTimestamp(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatInt(int64(f), 10)
	}
	return ""
}

func firstNonEmpty[T ~string](vals ...T) T {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
