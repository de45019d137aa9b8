package history

import (
	"log/slog"
	"sync"

	"go.klb.dev/scrivener/internal/item"
)

// EventType names a history change.
type EventType string

const (
	EventAdded      EventType = "added"
	EventRemoved    EventType = "removed"
	EventMoved      EventType = "moved"
	EventCopied     EventType = "copied"
	EventTabRemoved EventType = "tab-removed"
)

// Event describes one change to a tab. Row is -1 when the change is not
// tied to a single row; Item is set only for added and copied events.
type Event struct {
	Type EventType
	Tab  string
	Row  int
	Item item.Data
}

// eventBuffer bounds each subscriber's channel. Slow subscribers lose
// events rather than stalling the store.
const eventBuffer = 16

// hub fans history events out to subscribers. Delivery is non-blocking.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]chan Event)
	}
	id := h.next
	h.next++
	ch := make(chan Event, eventBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// publish delivers ev to every subscriber. Sends never block, so the lock
// is held for the whole fan-out; that also keeps sends ordered against
// cancel's close.
func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("dropping history event for slow subscriber", "type", ev.Type, "tab", ev.Tab)
		}
	}
}
