package receiver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"syscall"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"

	"github.com/nixlim/fleetwatch/internal/config"
	"github.com/nixlim/fleetwatch/internal/state"
)

// GRPCReceiver serves the OTLP LogsService.
type GRPCReceiver struct {
	collogspb.UnimplementedLogsServiceServer

	cfg    config.ReceiverConfig
	store  state.Store
	logger Logger

	mu       sync.Mutex
	listener net.Listener
	server   *grpc.Server
}

func NewGRPCReceiver(cfg config.ReceiverConfig, store state.Store, logger Logger) *GRPCReceiver {
	if logger == nil {
		logger = NopLogger{}
	}
	return &GRPCReceiver{cfg: cfg, store: store, logger: logger}
}

// Start binds the configured port and serves in the background.
func (r *GRPCReceiver) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", r.cfg.Bind, r.cfg.GRPCPort)
	lis, err := listen(ctx, addr, r.cfg.GRPCPort)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.listener = lis
	r.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(r.server, r)
	server := r.server
	r.mu.Unlock()

	go func() {
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Printf("ERROR: gRPC server stopped: %v", err)
		}
	}()
	return nil
}

// Export implements the OTLP LogsService.
func (r *GRPCReceiver) Export(_ context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	Ingest(r.store, r.logger, "grpc", convertLogs(req.GetResourceLogs()))
	return &collogspb.ExportLogsServiceResponse{}, nil
}

// Addr returns the bound address, or nil before Start.
func (r *GRPCReceiver) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

func (r *GRPCReceiver) Stop() {
	r.mu.Lock()
	server := r.server
	r.mu.Unlock()
	if server != nil {
		server.GracefulStop()
	}
}

// listen binds addr, reporting a port conflict in a form the CLI can show
// directly.
func listen(ctx context.Context, addr string, port int) (net.Listener, error) {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("port %d already in use", port)
		}
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return lis, nil
}
