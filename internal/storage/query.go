package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

const eventColumns = "id, device, kind, ts, message, payload"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (events.Event, error) {
	var id, device, kind, ts string
	var message, payload sql.NullString
	if err := row.Scan(&id, &device, &kind, &ts, &message, &payload); err != nil {
		return events.Event{}, err
	}
	e := events.Event{
		ID:      events.ID(id),
		Device:  device,
		Kind:    events.Kind(kind),
		TS:      ts,
		Message: message.String,
	}
	if payload.Valid && payload.String != "" {
		var p any
		if err := json.Unmarshal([]byte(payload.String), &p); err == nil {
			e.Payload = p
		} else {
			log.Printf("WARNING: stored payload of event %s is not valid JSON: %v", id, err)
		}
	}
	return e, nil
}

func (s *SQLiteStore) queryEvent(id events.ID) (events.Event, error) {
	row := s.db.QueryRow("SELECT "+eventColumns+" FROM events WHERE id = ?", string(id))
	return scanEvent(row)
}

// queryEvents runs q against the events table. Time bounds use the stored
// sort key; callers re-check them with q.Matches.
func (s *SQLiteStore) queryEvents(q state.Query) ([]events.Event, error) {
	var where []string
	var args []any
	if q.Device != "" {
		where = append(where, "device = ?")
		args = append(args, q.Device)
	}
	if !q.Since.IsZero() {
		where = append(where, "ts_ms >= ?")
		args = append(args, q.Since.UnixMilli())
	}
	if !q.Until.IsZero() {
		where = append(where, "ts_ms <= ?")
		args = append(args, q.Until.UnixMilli())
	}

	query := "SELECT " + eventColumns + " FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts_ms DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []events.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			log.Printf("ERROR: scanning event row: %v", err)
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) queryDevices() ([]state.DeviceSummary, error) {
	rows, err := s.db.Query("SELECT device, last_seen_ms, event_count FROM devices")
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []state.DeviceSummary
	for rows.Next() {
		var d state.DeviceSummary
		var lastSeen int64
		if err := rows.Scan(&d.Device, &lastSeen, &d.EventCount); err != nil {
			log.Printf("ERROR: scanning device row: %v", err)
			continue
		}
		d.LastSeen = time.UnixMilli(lastSeen).UTC()
		d.KindCounts = map[events.Kind]int{}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DailySummaries combines the rolled-up counts of pruned events with the
// events still in the table.
func (s *SQLiteStore) DailySummaries(days int) []state.DailySummary {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.DateOnly)

	rows, err := s.db.Query(`
		SELECT date, device, kind, SUM(count)
		FROM (
			SELECT date, device, kind, count
			FROM daily_counts
			WHERE date >= ?

			UNION ALL

			SELECT date(ts_ms / 1000, 'unixepoch') AS date, device, kind, COUNT(*) AS count
			FROM events
			WHERE date(ts_ms / 1000, 'unixepoch') >= ?
			GROUP BY 1, 2, 3
		)
		GROUP BY date, device, kind
		ORDER BY date DESC
	`, cutoff, cutoff)
	if err != nil {
		log.Printf("ERROR: querying daily summaries: %v", err)
		return nil
	}
	defer func() { _ = rows.Close() }()

	var summaries []state.DailySummary
	devices := make(map[string]bool)
	for rows.Next() {
		var date, device, kind string
		var count int
		if err := rows.Scan(&date, &device, &kind, &count); err != nil {
			log.Printf("ERROR: scanning daily summary row: %v", err)
			continue
		}
		if len(summaries) == 0 || summaries[len(summaries)-1].Date != date {
			summaries = append(summaries, state.DailySummary{Date: date, KindCounts: make(map[events.Kind]int)})
			devices = make(map[string]bool)
		}
		cur := &summaries[len(summaries)-1]
		cur.EventCount += count
		cur.KindCounts[events.Kind(kind)] += count
		if !devices[device] {
			devices[device] = true
			cur.Devices++
		}
	}
	if err := rows.Err(); err != nil {
		log.Printf("ERROR: iterating daily summary rows: %v", err)
	}
	return summaries
}
