package cart

import (
	"sync"
	"time"
)

// Registry keeps one Store per storefront session.
type Registry struct {
	mu      sync.Mutex
	carts   map[string]*entry
	maxIdle time.Duration
	now     func() time.Time
}

type entry struct {
	store   *Store
	touched time.Time
}

// NewRegistry returns a Registry whose idle carts can be swept after maxIdle.
// A zero maxIdle keeps carts forever.
func NewRegistry(maxIdle time.Duration) *Registry {
	return &Registry{
		carts:   make(map[string]*entry),
		maxIdle: maxIdle,
		now:     time.Now,
	}
}

// Get returns the cart for session id, creating it on first use.
func (r *Registry) Get(id string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.carts[id]
	if !ok {
		e = &entry{store: &Store{id: id}}
		r.carts[id] = e
	}
	e.touched = r.now()
	return e.store
}

// Sweep drops carts untouched for longer than maxIdle and returns how many
// were dropped.
func (r *Registry) Sweep() int {
	if r.maxIdle <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.maxIdle)
	dropped := 0
	for id, e := range r.carts {
		if e.touched.Before(cutoff) {
			delete(r.carts, id)
			dropped++
		}
	}
	return dropped
}
