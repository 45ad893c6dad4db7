package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

const (
	writeChannelSize = 1000
	batchSize        = 50
	flushInterval    = 100 * time.Millisecond
)

type writeOp struct {
	opType     string
	event      *events.Event
	receivedAt time.Time
}

// SQLiteStore keeps the in-memory store as the hot path and persists every
// event asynchronously. Reads fall back to the database for events that
// have left memory.
type SQLiteStore struct {
	*state.MemoryStore
	db              *sql.DB
	writeChan       chan writeOp
	droppedWrites   atomic.Int64
	doneChan        chan struct{}
	closed          atomic.Bool
	cancelMaint     context.CancelFunc
	maintenanceDone chan struct{}
}

func NewSQLiteStore(dbPath string, retentionDays, maxEventsPerDevice int) (*SQLiteStore, error) {
	return newSQLiteStoreWithChannelSize(dbPath, writeChannelSize, retentionDays, maxEventsPerDevice)
}

func newSQLiteStoreWithChannelSize(dbPath string, chanSize int, retentionDays, maxEventsPerDevice int) (*SQLiteStore, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	store := &SQLiteStore{
		MemoryStore:     state.NewMemoryStore(state.WithMaxEventsPerDevice(maxEventsPerDevice)),
		db:              db,
		writeChan:       make(chan writeOp, chanSize),
		doneChan:        make(chan struct{}),
		cancelMaint:     cancel,
		maintenanceDone: make(chan struct{}),
	}

	if err := store.recoverEvents(recoveryWindow); err != nil {
		cancel()
		_ = db.Close()
		return nil, fmt.Errorf("recovering events: %w", err)
	}

	go store.writerLoop()
	store.startMaintenance(ctx, retentionDays)

	return store, nil
}

func (s *SQLiteStore) AddEvent(e events.Event) bool {
	now := time.Now()
	e = state.Normalize(e, now)
	if !s.MemoryStore.AddEvent(e) {
		return false
	}

	s.sendWrite(writeOp{
		opType:     "event",
		event:      &e,
		receivedAt: now,
	})
	return true
}

// GetEvent looks in memory first, then in the database.
func (s *SQLiteStore) GetEvent(id events.ID) (events.Event, bool) {
	if e, ok := s.MemoryStore.GetEvent(id); ok {
		return e, true
	}
	e, err := s.queryEvent(id)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("ERROR: querying event %s: %v", id, err)
		}
		return events.Event{}, false
	}
	return e, true
}

// Events merges memory with the database. Events still in the write queue
// are only in memory; events evicted from memory are only in the database.
func (s *SQLiteStore) Events(q state.Query) []events.Event {
	mem := s.MemoryStore.Events(q)
	stored, err := s.queryEvents(q)
	if err != nil {
		log.Printf("ERROR: querying events: %v", err)
		return mem
	}

	seen := make(map[events.ID]bool, len(mem)+len(stored))
	out := make([]events.Event, 0, len(mem)+len(stored))
	for _, list := range [][]events.Event{mem, stored} {
		for _, e := range list {
			if seen[e.ID] || !q.Matches(e) {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
	}

	state.SortNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// ListDevices adds devices known only to the database to the in-memory
// summaries. Their kind counts are not tracked.
func (s *SQLiteStore) ListDevices() []state.DeviceSummary {
	mem := s.MemoryStore.ListDevices()
	stored, err := s.queryDevices()
	if err != nil {
		log.Printf("ERROR: querying devices: %v", err)
		return mem
	}

	index := make(map[string]int, len(mem))
	for i, d := range mem {
		index[d.Device] = i
	}
	for _, d := range stored {
		i, ok := index[d.Device]
		if !ok {
			mem = append(mem, d)
			continue
		}
		if d.EventCount > mem[i].EventCount {
			mem[i].EventCount = d.EventCount
		}
		if d.LastSeen.After(mem[i].LastSeen) {
			mem[i].LastSeen = d.LastSeen
		}
	}
	state.SortDevices(mem)
	return mem
}

func (s *SQLiteStore) sendWrite(op writeOp) {
	if s.closed.Load() {
		return
	}
	defer func() { _ = recover() }()
	select {
	case s.writeChan <- op:
	default:
		s.droppedWrites.Add(1)
		var id events.ID
		if op.event != nil {
			id = op.event.ID
		}
		log.Printf("WARNING: SQLite write channel full, dropped write (event=%s, type=%s)", id, op.opType)
	}
}

func (s *SQLiteStore) DroppedWrites() int64 {
	return s.droppedWrites.Load()
}

func (s *SQLiteStore) Close() error {
	s.closed.Store(true)

	s.cancelMaint()
	select {
	case <-s.maintenanceDone:
	case <-time.After(30 * time.Second):
		log.Printf("WARNING: maintenance goroutine did not stop within 30s")
	}

	close(s.writeChan)

	select {
	case <-s.doneChan:
	case <-time.After(10 * time.Second):
		log.Printf("ERROR: failed to drain writes within 10s, data may be lost")
	}

	return s.db.Close()
}

func (s *SQLiteStore) writerLoop() {
	defer close(s.doneChan)

	batch := make([]writeOp, 0, batchSize)
	flushTimer := time.NewTimer(flushInterval)
	defer flushTimer.Stop()

	for {
		select {
		case op, ok := <-s.writeChan:
			if !ok {
				if len(batch) > 0 {
					s.flushBatch(batch)
				}
				return
			}

			batch = append(batch, op)

			if len(batch) >= batchSize {
				s.flushBatch(batch)
				batch = batch[:0]
				flushTimer.Reset(flushInterval)
			}

		case <-flushTimer.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
			flushTimer.Reset(flushInterval)
		}
	}
}

func (s *SQLiteStore) flushBatch(batch []writeOp) {
	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("ERROR: failed to begin transaction: %v", err)
		return
	}
	defer func() { _ = tx.Rollback() }()

	for _, op := range batch {
		if err := s.executeOp(tx, op); err != nil {
			log.Printf("ERROR: failed to execute write op (type=%s): %v", op.opType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("ERROR: failed to commit transaction: %v", err)
	}
}

func (s *SQLiteStore) executeOp(tx *sql.Tx, op writeOp) error {
	switch op.opType {
	case "event":
		return writeEvent(tx, *op.event, op.receivedAt)
	default:
		return fmt.Errorf("unknown op type: %s", op.opType)
	}
}
