// Package api serves the dashboard's JSON routes.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nixlim/fleetwatch/internal/config"
	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

type Server struct {
	cfg     config.APIConfig
	store   state.Store
	bundler *events.Bundler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// NewServer creates the API server. A nil bundler uses the defaults.
func NewServer(cfg config.APIConfig, store state.Store, bundler *events.Bundler) *Server {
	if bundler == nil {
		bundler = events.NewBundler()
	}
	return &Server{cfg: cfg, store: store, bundler: bundler}
}

// Handler returns the routes, for mounting or for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", getOnly(s.handleEvents))
	mux.HandleFunc("/api/events/{id}/payload", getOnly(s.handlePayload))
	mux.HandleFunc("/api/devices", getOnly(s.handleDevices))
	mux.HandleFunc("/api/stats/daily", getOnly(s.handleDailyStats))
	mux.HandleFunc("/healthz", getOnly(handleHealth))
	return mux
}

// Start binds the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port)
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = lis
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	server := s.server
	s.mu.Unlock()

	log.Printf("API server listening on %s", lis.Addr())
	go func() {
		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: API server stopped: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// getOnly sets CORS headers, answers preflight requests and rejects every
// method but GET.
func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}
