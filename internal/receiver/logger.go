package receiver

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
)

// Logger provides structured debug logging for ingested events.
// Implementations must be safe for concurrent use.
type Logger interface {
	// LogEvent logs an event as it arrived, before it reaches the store.
	// transport names the ingest path ("grpc", "http", "mqtt", "kafka").
	LogEvent(transport string, e events.Event)
}

// NopLogger discards all log output. This is the default when debug logging
// is not enabled.
type NopLogger struct{}

// LogEvent is a no-op.
func (NopLogger) LogEvent(string, events.Event) {}

// logEntry is the JSON structure written by FileLogger.
type logEntry struct {
	Received  string    `json:"received"`
	Transport string    `json:"transport"`
	ID        events.ID `json:"id"`
	Device    string    `json:"device"`
	Kind      string    `json:"kind"`
	TS        string    `json:"ts,omitempty"`
	Message   string    `json:"message,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// FileLogger writes structured JSON debug output to an io.Writer.
// Each line is a complete JSON object (JSONL format).
type FileLogger struct {
	w   io.Writer
	mu  sync.Mutex
	now func() time.Time
}

// NewFileLogger creates a FileLogger that writes to the given writer.
func NewFileLogger(w io.Writer) *FileLogger {
	return &FileLogger{w: w, now: time.Now}
}

// LogEvent writes a JSON line for an ingested event.
func (l *FileLogger) LogEvent(transport string, e events.Event) {
	l.write(logEntry{
		Received:  l.now().UTC().Format(time.RFC3339Nano),
		Transport: transport,
		ID:        e.ID,
		Device:    e.Device,
		Kind:      string(e.Kind),
		TS:        e.TS,
		Message:   e.Message,
		Payload:   e.Payload,
	})
}

// write serialises a logEntry as JSON and writes it as a single line.
// Serialisation errors are silently dropped to avoid disrupting ingest.
func (l *FileLogger) write(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s\n", data)
}
