package interval

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("selection session not found")

type session struct {
	sel     *Selector
	touched time.Time
	mu      sync.Mutex
}

// Registry hands out one Selector per client session and serializes the
// actions sent to each of them.
type Registry struct {
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// NewRegistry drops sessions idle for longer than ttl (0 keeps them forever).
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create opens a session with an empty selection.
func (r *Registry) Create() (string, Snapshot) {
	r.Sweep()
	id := uuid.NewString()
	s := &session{sel: New(), touched: r.now()}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return id, s.sel.Snapshot()
}

func (r *Registry) lookup(id string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Get returns the current state of a session.
func (r *Registry) Get(id string) (Snapshot, error) {
	s, ok := r.lookup(id)
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Snapshot(), nil
}

// Do applies a to the session's selector.
func (r *Registry) Do(id string, a Action) (Snapshot, error) {
	s, ok := r.lookup(id)
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = r.now()
	return s.sel.Apply(a), nil
}

// Delete closes a session; it reports whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Len is the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops idle sessions.
func (r *Registry) Sweep() {
	if r.ttl <= 0 {
		return
	}
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		s.mu.Lock()
		idle := s.touched.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(r.sessions, id)
		}
	}
}
