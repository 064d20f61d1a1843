package audit

import (
	"sync"

	"github.com/touchstonehq/touchstone/internal/models"
)

// Hub fans freshly committed events out to live feed subscribers. Delivery
// is best-effort: a subscriber that cannot keep up loses events rather than
// blocking the request that committed them. There is no replay; late
// subscribers start from the next event.
type Hub struct {
	mu   sync.Mutex
	subs map[chan *models.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan *models.Event]struct{})}
}

// Subscribe registers a new subscriber channel. The caller must call the
// returned cancel func when done.
func (h *Hub) Subscribe() (<-chan *models.Event, func()) {
	ch := make(chan *models.Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers ev to every subscriber, dropping it for any whose
// buffer is full.
func (h *Hub) Broadcast(ev *models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
