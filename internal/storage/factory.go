package storage

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/nixlim/fleetwatch/internal/config"
	"github.com/nixlim/fleetwatch/internal/state"
)

// NewStore opens the configured store. An empty db_path selects the
// in-memory store; a database that cannot be opened falls back to it with
// a warning. The bool reports whether events are persisted.
func NewStore(cfg config.StorageConfig) (state.Store, bool, error) {
	memory := func() state.Store {
		return state.NewMemoryStore(state.WithMaxEventsPerDevice(cfg.MaxEventsPerDevice))
	}

	if cfg.DBPath == "" {
		return memory(), false, nil
	}

	dbPath := expandTilde(cfg.DBPath)

	store, err := NewSQLiteStore(dbPath, cfg.RetentionDays, cfg.MaxEventsPerDevice)
	if err != nil {
		log.Printf("WARNING: SQLite storage unavailable (%v), falling back to in-memory store", err)
		return memory(), false, nil
	}

	return store, true, nil
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
