package scheduler

import (
	"sync"
	"time"
)

// Event is one entry in the scheduler's recent-activity log.
type Event struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// ringLog keeps the most recent events in a fixed-size ring.
type ringLog struct {
	mu     sync.Mutex
	events []Event
	next   int
	filled bool
}

func newRingLog(size int) *ringLog {
	if size <= 0 {
		size = 32
	}
	return &ringLog{events: make([]Event, size)}
}

func (r *ringLog) add(at time.Time, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = Event{At: at, Message: message}
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.filled = true
	}
}

// snapshot returns events oldest first.
func (r *ringLog) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	if r.filled {
		out = append(out, r.events[r.next:]...)
	}
	out = append(out, r.events[:r.next]...)
	return out
}
