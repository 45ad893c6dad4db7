package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
)

// maxPayloadColumn is the size above which a payload column is logged.
const maxPayloadColumn = 1 << 20

// marshalPayload encodes the payload as JSON, returning nil for a missing
// payload. Payloads that cannot be encoded are stored as NULL.
func marshalPayload(id events.ID, v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("WARNING: failed to marshal payload for event %s: %v", id, err)
		return nil
	}
	if len(data) > maxPayloadColumn {
		log.Printf("WARNING: payload of event %s exceeds 1MB (%d bytes)", id, len(data))
	}
	return string(data)
}

// sortKey is the millisecond time used for ordering and retention.
func sortKey(e events.Event, receivedAt time.Time) int64 {
	if at, ok := e.Time(); ok {
		return at.UnixMilli()
	}
	return receivedAt.UnixMilli()
}

func writeEvent(tx *sql.Tx, e events.Event, receivedAt time.Time) error {
	tsMS := sortKey(e, receivedAt)

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO events (id, device, kind, ts, ts_ms, message, payload, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, string(e.ID), e.Device, string(e.Kind), e.TS, tsMS, e.Message,
		marshalPayload(e.ID, e.Payload), events.FormatTimestamp(receivedAt))
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	_, err = tx.Exec(`
		INSERT INTO devices (device, first_seen_ms, last_seen_ms, event_count) VALUES (?, ?, ?, 1)
		ON CONFLICT(device) DO UPDATE SET
			first_seen_ms=MIN(devices.first_seen_ms, excluded.first_seen_ms),
			last_seen_ms=MAX(devices.last_seen_ms, excluded.last_seen_ms),
			event_count=devices.event_count + 1
	`, e.Device, tsMS, tsMS)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return nil
}
