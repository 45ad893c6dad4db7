package events

import "sync"

// RingBuffer is a fixed-capacity, thread-safe ring buffer holding the most
// recently received events for the live feed. When the buffer is full the
// oldest event is evicted. All methods are safe for concurrent use.
type RingBuffer struct {
	mu    sync.RWMutex
	items []Event
	cap   int
	head  int // index of the oldest element
	count int
}

// NewRingBuffer creates a RingBuffer with the given capacity, clamped to 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		items: make([]Event, capacity),
		cap:   capacity,
	}
}

// Add inserts an event, overwriting the oldest one when full.
func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == rb.cap {
		rb.items[rb.head] = e
		rb.head = (rb.head + 1) % rb.cap
		return
	}
	rb.items[(rb.head+rb.count)%rb.cap] = e
	rb.count++
}

// ListAll returns all events in arrival order (oldest first).
func (rb *RingBuffer) ListAll() []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.listLocked()
}

// ListByDevice returns the events of one device in arrival order.
func (rb *RingBuffer) ListByDevice(device string) []Event {
	return rb.listWhere(func(e Event) bool { return e.Device == device })
}

// ListByKind returns the events of one kind in arrival order.
func (rb *RingBuffer) ListByKind(kind Kind) []Event {
	return rb.listWhere(func(e Event) bool { return e.Kind == kind })
}

// Len returns the number of events currently buffered.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return rb.cap
}

func (rb *RingBuffer) listWhere(keep func(Event) bool) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var result []Event
	for _, e := range rb.listLocked() {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

// listLocked returns all events in arrival order.
// Caller must hold at least a read lock.
func (rb *RingBuffer) listLocked() []Event {
	if rb.count == 0 {
		return nil
	}
	result := make([]Event, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[(rb.head+i)%rb.cap]
	}
	return result
}
