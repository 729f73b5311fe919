package transport

import (
	"encoding/json"
	"sync"
)

// registry holds event handlers and disconnect callbacks for a Conn.
type registry struct {
	mu         sync.RWMutex
	nextID     uint64
	handlers   map[string]map[uint64]Handler
	disconnect map[uint64]func()
}

func newRegistry() *registry {
	return &registry{
		handlers:   make(map[string]map[uint64]Handler),
		disconnect: make(map[uint64]func()),
	}
}

func (r *registry) on(event string, h Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	if r.handlers[event] == nil {
		r.handlers[event] = make(map[uint64]Handler)
	}
	r.handlers[event][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.handlers[event], id)
			if len(r.handlers[event]) == 0 {
				delete(r.handlers, event)
			}
		})
	}
}

func (r *registry) onDisconnect(fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.disconnect[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.disconnect, id)
		})
	}
}

// dispatch runs the handlers for event outside the lock. It reports
// whether any handler was registered.
func (r *registry) dispatch(event string, data json.RawMessage) bool {
	r.mu.RLock()
	hs := make([]Handler, 0, len(r.handlers[event]))
	for _, h := range r.handlers[event] {
		hs = append(hs, h)
	}
	r.mu.RUnlock()
	for _, h := range hs {
		h(data)
	}
	return len(hs) > 0
}

func (r *registry) fireDisconnect() {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.disconnect))
	for id, fn := range r.disconnect {
		fns = append(fns, fn)
		delete(r.disconnect, id)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// count reports the number of live subscriptions.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.disconnect)
	for _, hs := range r.handlers {
		n += len(hs)
	}
	return n
}
