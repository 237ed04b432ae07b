package web

import (
	"sync"

	"ytmetube/internal/progress"
)

// Hub fans progress events out to server-sent event subscribers and keeps the most
// recent ones for late joiners.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan progress.Event]struct{}
	recent []progress.Event
	keep   int
}

func NewHub(keep int) *Hub {
	if keep <= 0 {
		keep = 100
	}
	return &Hub{subs: map[chan progress.Event]struct{}{}, keep: keep}
}

// Emit implements progress.Sink. Slow subscribers miss events rather than block a run.
func (h *Hub) Emit(e progress.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent = append(h.recent, e)
	if len(h.recent) > h.keep {
		h.recent = h.recent[len(h.recent)-h.keep:]
	}
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new listener. The returned func unregisters it.
func (h *Hub) Subscribe() (<-chan progress.Event, func()) {
	ch := make(chan progress.Event, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// Recent returns a copy of the retained events, oldest first.
func (h *Hub) Recent() []progress.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]progress.Event(nil), h.recent...)
}

// Subscribers returns the number of connected listeners.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
