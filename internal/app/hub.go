package app

import (
	"log"
	"sync"

	"focuspilot/internal/ipc"
)

const subscriberBuffer = 32

// Hub fans notices out to SUBSCRIBE connections. The last STATE notice is
// replayed to new subscribers.
type Hub struct {
	mu    sync.Mutex
	subs  map[int]chan ipc.Notice
	next  int
	state *ipc.Notice
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan ipc.Notice)}
}

// Subscribe registers a listener. cancel must be called once the listener is gone.
func (h *Hub) Subscribe() (<-chan ipc.Notice, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan ipc.Notice, subscriberBuffer)
	if h.state != nil {
		ch <- *h.state
	}
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers n to every subscriber without blocking and returns how
// many received it. Slow subscribers miss notices.
func (h *Hub) Publish(n ipc.Notice) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n.Type == ipc.NoticeState {
		saved := n
		h.state = &saved
	}
	delivered := 0
	for id, ch := range h.subs {
		select {
		case ch <- n:
			delivered++
		default:
			log.Printf("Warning: subscriber %d is not keeping up, dropping %s notice", id, n.Type)
		}
	}
	return delivered
}

// Count is the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
