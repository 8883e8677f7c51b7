package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a recent event
type EventType string

const (
	EventTrade    EventType = "trade"
	EventRejected EventType = "rejected"
	EventConflict EventType = "conflict"
	EventExit     EventType = "exit"
	EventHalt     EventType = "halt"
	EventError    EventType = "error"
	EventState    EventType = "state"
)

// DefaultEventCapacity is the size of the recent event ring
const DefaultEventCapacity = 50

// Event is one entry in the recent activity ring
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Symbol    string                 `json:"symbol,omitempty"`
	Strategy  string                 `json:"strategy,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventRing is a bounded, append-only buffer that evicts the oldest entry
type EventRing struct {
	mu     sync.RWMutex
	buf    []Event
	next   int
	filled bool
}

func NewEventRing(capacity int) *EventRing {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventRing{buf: make([]Event, capacity)}
}

// Add appends an event, assigning an ID when missing
func (r *EventRing) Add(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.filled = true
	}
}

// Len returns the number of stored events
func (r *EventRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.filled {
		return len(r.buf)
	}
	return r.next
}

// Recent returns up to limit events, most recent first. limit <= 0 returns all.
func (r *EventRing) Recent(limit int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.filled {
		n = len(r.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}
