package provider

import "sync"

// eventHub fans provider events out to subscribers. Unsubscribe handles
// are closures over a registration id, so a handler can be registered
// more than once and released independently.
type eventHub struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
	closed   bool
}

func newEventHub() *eventHub {
	return &eventHub{handlers: make(map[int]Handler)}
}

// subscribe registers a handler and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (h *eventHub) subscribe(fn Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return func() {}
	}

	id := h.nextID
	h.nextID++
	h.handlers[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.handlers, id)
	}
}

// publish delivers an event to all current subscribers. Handlers are
// invoked outside the hub lock so they may subscribe or unsubscribe.
func (h *eventHub) publish(e Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	snapshot := make([]Handler, 0, len(h.handlers))
	for _, fn := range h.handlers {
		snapshot = append(snapshot, fn)
	}
	h.mu.Unlock()

	for _, fn := range snapshot {
		fn(e)
	}
}

// close drops all subscribers and stops further delivery.
func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.handlers = make(map[int]Handler)
}
