package storage

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	maintenanceInterval = 1 * time.Hour
	vacuumInterval      = 7 * 24 * time.Hour
)

func (s *SQLiteStore) startMaintenance(ctx context.Context, retentionDays int) {
	go s.maintenanceLoop(ctx, retentionDays)
}

func (s *SQLiteStore) maintenanceLoop(ctx context.Context, retentionDays int) {
	defer close(s.maintenanceDone)

	lastVacuum := time.Now()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runMaintenanceCycle(retentionDays, time.Now()); err != nil {
				log.Printf("ERROR: maintenance cycle failed: %v", err)
			}

			if time.Since(lastVacuum) >= vacuumInterval {
				if _, err := s.db.Exec("VACUUM"); err != nil {
					log.Printf("ERROR: VACUUM failed: %v", err)
				} else {
					lastVacuum = time.Now()
				}
			}
		}
	}
}

// runMaintenanceCycle rolls events older than the retention period into
// daily_counts and deletes them. Counts add to any earlier roll-up of the
// same day.
func (s *SQLiteStore) runMaintenanceCycle(retentionDays int, now time.Time) error {
	cutoff := now.AddDate(0, 0, -retentionDays).UnixMilli()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting maintenance transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO daily_counts (date, device, kind, count)
		SELECT date(ts_ms / 1000, 'unixepoch'), device, kind, COUNT(*)
		FROM events
		WHERE ts_ms < ?
		GROUP BY 1, 2, 3
		ON CONFLICT(date, device, kind) DO UPDATE SET
			count = daily_counts.count + excluded.count
	`, cutoff)
	if err != nil {
		return fmt.Errorf("aggregating old events: %w", err)
	}

	res, err := tx.Exec("DELETE FROM events WHERE ts_ms < ?", cutoff)
	if err != nil {
		return fmt.Errorf("pruning old events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing maintenance: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("pruned %d events older than %d days", n, retentionDays)
	}
	return nil
}
