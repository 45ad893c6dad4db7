package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/nixlim/fleetwatch/internal/config"
	"github.com/nixlim/fleetwatch/internal/state"
)

// maxBodyBytes caps an OTLP/HTTP request body.
const maxBodyBytes = 16 << 20

// HTTPReceiver serves OTLP/HTTP on /v1/logs.
type HTTPReceiver struct {
	cfg    config.ReceiverConfig
	store  state.Store
	logger Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func NewHTTPReceiver(cfg config.ReceiverConfig, store state.Store, logger Logger) *HTTPReceiver {
	if logger == nil {
		logger = NopLogger{}
	}
	return &HTTPReceiver{cfg: cfg, store: store, logger: logger}
}

// Start binds the configured port and serves in the background.
func (r *HTTPReceiver) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", r.cfg.Bind, r.cfg.HTTPPort)
	lis, err := listen(ctx, addr, r.cfg.HTTPPort)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/logs", r.handleLogs)

	r.mu.Lock()
	r.listener = lis
	r.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	server := r.server
	r.mu.Unlock()

	go func() {
		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: HTTP receiver stopped: %v", err)
		}
	}()
	return nil
}

func (r *HTTPReceiver) handleLogs(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "reading body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var export collogspb.ExportLogsServiceRequest
	isJSON := strings.HasPrefix(req.Header.Get("Content-Type"), "application/json")
	if isJSON {
		err = protojson.Unmarshal(body, &export)
	} else {
		err = proto.Unmarshal(body, &export)
	}
	if err != nil {
		log.Printf("WARNING: rejecting malformed OTLP/HTTP logs request: %v", err)
		http.Error(w, "invalid OTLP payload", http.StatusBadRequest)
		return
	}

	Ingest(r.store, r.logger, "http", convertLogs(export.GetResourceLogs()))

	resp := &collogspb.ExportLogsServiceResponse{}
	var out []byte
	if isJSON {
		w.Header().Set("Content-Type", "application/json")
		out, err = protojson.Marshal(resp)
	} else {
		w.Header().Set("Content-Type", "application/x-protobuf")
		out, err = proto.Marshal(resp)
	}
	if err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// Addr returns the bound address, or nil before Start.
func (r *HTTPReceiver) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

func (r *HTTPReceiver) Stop() {
	r.mu.Lock()
	server := r.server
	r.mu.Unlock()
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}
