package poll

import (
	"fmt"
	"sync"
)

// Handle is the type-erased view of a session kept by a Registry.
type Handle interface {
	ID() string
	State() State
	Cancel()
	Done() <-chan struct{}
}

// Registry tracks sessions by id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Handle)}
}

func (r *Registry) add(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions == nil {
		r.sessions = make(map[string]Handle)
	}
	r.sessions[h.ID()] = h
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[id]
	return h, ok
}

// Cancel cancels the session registered under id. Cancelling a terminal
// session is a no-op; an id the registry does not know is an error.
func (r *Registry) Cancel(id string) error {
	h, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("cancel %q: %w", id, ErrUnknownSession)
	}
	h.Cancel()
	return nil
}

// CancelAll cancels every tracked session.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.sessions))
	for _, h := range r.sessions {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

// Active returns the number of sessions that are still pending.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.sessions {
		if !h.State().Terminal() {
			n++
		}
	}
	return n
}

// Prune forgets terminal sessions and returns how many were removed. Pruned
// ids become unknown to Cancel.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, h := range r.sessions {
		if h.State().Terminal() {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
