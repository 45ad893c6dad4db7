package tui

import (
	"context"
	"log"
	"time"
)

// ShutdownManager coordinates graceful shutdown of all fleetwatch
// components once the dashboard exits.
type ShutdownManager struct {
	// DrainTimeout bounds the time given to listeners for in-flight requests.
	DrainTimeout time.Duration

	// StopReceiver stops the OTLP receiver from accepting new connections.
	StopReceiver func(ctx context.Context) error

	// StopAPI shuts the dashboard HTTP API down.
	StopAPI func(ctx context.Context) error

	// StopSources disconnects the MQTT and Kafka consumers.
	StopSources func()

	// Cleanup runs last, typically flushing and closing the store.
	Cleanup func()
}

// NewShutdownManager creates a ShutdownManager with a 5-second drain timeout.
func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		DrainTimeout: 5 * time.Second,
	}
}

// Shutdown stops ingestion before serving and closes the store last, so no
// accepted event is dropped before it reaches storage:
// 1. Stop the receiver and drain in-flight exports
// 2. Stop the broker sources
// 3. Shut the API down
// 4. Run cleanup
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.DrainTimeout)
	defer cancel()

	if sm.StopReceiver != nil {
		if err := sm.StopReceiver(ctx); err != nil {
			log.Printf("WARNING: stopping receiver: %v", err)
		}
	}

	if sm.StopSources != nil {
		sm.StopSources()
	}

	if sm.StopAPI != nil {
		if err := sm.StopAPI(ctx); err != nil {
			log.Printf("WARNING: stopping api: %v", err)
		}
	}

	if sm.Cleanup != nil {
		sm.Cleanup()
	}

	return nil
}
