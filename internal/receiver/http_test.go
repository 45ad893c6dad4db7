package receiver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/nixlim/fleetwatch/internal/config"
	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

// startTestHTTP starts an HTTP receiver on an ephemeral port for testing.
func startTestHTTP(t *testing.T, store state.Store) (*HTTPReceiver, string) {
	t.Helper()

	cfg := config.ReceiverConfig{
		HTTPPort: 0, // Use ephemeral port.
		Bind:     "127.0.0.1",
	}

	r := NewHTTPReceiver(cfg, store, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return r, fmt.Sprintf("http://%s/v1/logs", r.Addr().String())
}

func TestOTLPReceiver_HTTPEvents(t *testing.T) {
	t.Run("protobuf_content_type", func(t *testing.T) {
		store := state.NewMemoryStore()
		r, url := startTestHTTP(t, store)
		defer r.Stop()

		req := makeLogsRequest("mac-http-001", time.Now(),
			strAttr("event.id", "evt-http-1"),
			strAttr("event.kind", "warning"),
		)
		body, err := proto.Marshal(req)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}

		resp, err := http.Post(url, "application/x-protobuf", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("HTTP POST failed: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}

		got, ok := store.GetEvent("evt-http-1")
		if !ok {
			t.Fatal("expected event evt-http-1 to exist")
		}
		if got.Device != "mac-http-001" || got.Kind != events.KindWarning {
			t.Errorf("stored event: got %+v", got)
		}
	})

	t.Run("json_content_type", func(t *testing.T) {
		store := state.NewMemoryStore()
		r, url := startTestHTTP(t, store)
		defer r.Stop()

		req := makeLogsRequest("mac-http-002", time.Now(), strAttr("event.id", "evt-http-2"))
		body, err := protojson.Marshal(req)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}

		resp, err := http.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("HTTP POST failed: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("response content type: want application/json, got %s", ct)
		}
		if _, ok := store.GetEvent("evt-http-2"); !ok {
			t.Fatal("expected event evt-http-2 to exist")
		}
	})

	t.Run("invalid_payload_returns_400", func(t *testing.T) {
		store := state.NewMemoryStore()
		r, url := startTestHTTP(t, store)
		defer r.Stop()

		resp, err := http.Post(url, "application/x-protobuf", bytes.NewReader([]byte("not valid protobuf")))
		if err != nil {
			t.Fatalf("HTTP POST failed: %v", err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400 for invalid payload, got %d", resp.StatusCode)
		}

		// Server should still be operational.
		body, _ := proto.Marshal(makeLogsRequest("mac-recovery", time.Now(), strAttr("event.id", "evt-ok")))
		resp2, err := http.Post(url, "application/x-protobuf", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("recovery POST failed: %v", err)
		}
		_ = resp2.Body.Close()

		if resp2.StatusCode != http.StatusOK {
			t.Errorf("expected 200 after recovery, got %d", resp2.StatusCode)
		}
		if _, ok := store.GetEvent("evt-ok"); !ok {
			t.Fatal("expected event after recovery from invalid payload")
		}
	})

	t.Run("invalid_json_returns_400", func(t *testing.T) {
		r, url := startTestHTTP(t, state.NewMemoryStore())
		defer r.Stop()

		resp, err := http.Post(url, "application/json", bytes.NewReader([]byte("{invalid json")))
		if err != nil {
			t.Fatalf("HTTP POST failed: %v", err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400 for invalid JSON, got %d", resp.StatusCode)
		}
	})

	t.Run("get_not_allowed", func(t *testing.T) {
		r, url := startTestHTTP(t, state.NewMemoryStore())
		defer r.Stop()

		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("HTTP GET failed: %v", err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405 for GET, got %d", resp.StatusCode)
		}
	})
}
