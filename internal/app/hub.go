package app

import (
	"sync"

	"trailpoints/internal/domain"
)

// Hub fans balance events out to the live connections of each user.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.BalanceEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan domain.BalanceEvent]struct{})}
}

// Subscribe returns a channel that receives the user's balance events.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(userID string) (<-chan domain.BalanceEvent, func()) {
	ch := make(chan domain.BalanceEvent, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[userID]
	if !ok {
		subs = make(map[chan domain.BalanceEvent]struct{})
		h.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[userID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, userID)
		}
	}
	return ch, cancel
}

// Publish never blocks: a full subscriber loses its oldest pending event.
func (h *Hub) Publish(ev domain.BalanceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[ev.UserID] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribers reports how many channels are open for the user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[userID])
}
