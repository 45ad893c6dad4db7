// Package receiver accepts device events over OTLP logs, on gRPC and HTTP,
// and writes them to the event store.
package receiver

import (
	"context"
	"fmt"
	"log"

	"github.com/nixlim/fleetwatch/internal/config"
	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

// Ingest logs and stores evts, returning how many were new. Duplicates are
// dropped by the store.
func Ingest(store state.Store, logger Logger, transport string, evts []events.Event) int {
	if logger == nil {
		logger = NopLogger{}
	}
	accepted := 0
	for _, e := range evts {
		logger.LogEvent(transport, e)
		if store.AddEvent(e) {
			accepted++
		}
	}
	return accepted
}

// Receiver runs the gRPC and HTTP OTLP listeners together.
type Receiver struct {
	grpc *GRPCReceiver
	http *HTTPReceiver
}

// New creates a Receiver for both transports. A nil logger disables debug
// logging.
func New(cfg config.ReceiverConfig, store state.Store, logger Logger) *Receiver {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Receiver{
		grpc: NewGRPCReceiver(cfg, store, logger),
		http: NewHTTPReceiver(cfg, store, logger),
	}
}

// Start binds both listeners. If the second fails the first is stopped.
func (r *Receiver) Start(ctx context.Context) error {
	if err := r.grpc.Start(ctx); err != nil {
		return fmt.Errorf("grpc receiver: %w", err)
	}
	if err := r.http.Start(ctx); err != nil {
		r.grpc.Stop()
		return fmt.Errorf("http receiver: %w", err)
	}
	log.Printf("OTLP receiver listening on grpc=%s http=%s", r.grpc.Addr(), r.http.Addr())
	return nil
}

// Stop shuts down both listeners.
func (r *Receiver) Stop() {
	r.http.Stop()
	r.grpc.Stop()
}
