package storage

import (
	"fmt"
	"log"
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
)

// recoveryWindow is how far back events are reloaded into memory on start.
const recoveryWindow = 24 * time.Hour

// recoverEvents reloads recent events into memory, oldest first so the
// per-device cap keeps the newest ones.
func (s *SQLiteStore) recoverEvents(window time.Duration) error {
	cutoff := time.Now().Add(-window).UnixMilli()

	rows, err := s.db.Query("SELECT "+eventColumns+" FROM events WHERE ts_ms > ? ORDER BY ts_ms ASC", cutoff)
	if err != nil {
		return fmt.Errorf("querying recent events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var failCount int
	var recovered []events.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			failCount++
			log.Printf("ERROR: failed to scan event row: %v", err)
			continue
		}
		recovered = append(recovered, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating events: %w", err)
	}

	if failCount > 0 {
		log.Printf("WARNING: %d events failed to recover from database", failCount)
	}
	s.Restore(recovered)
	return nil
}
