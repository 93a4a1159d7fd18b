package progress

import (
	"sync"
	"time"
)

type registryEntry struct {
	engine   *Engine
	lastUsed time.Time
}

// Registry holds one Engine per user.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*registryEntry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]*registryEntry),
		now:     time.Now,
	}
}

// Get returns the engine for key, building it with create on first use.
// The bool result is true when the engine was newly created and still
// needs a Load.
func (r *Registry) Get(key string, create func() *Engine) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ent, ok := r.engines[key]; ok {
		ent.lastUsed = r.now()
		return ent.engine, false
	}
	e := create()
	r.engines[key] = &registryEntry{engine: e, lastUsed: r.now()}
	return e, true
}

func (r *Registry) Remove(key string) {
	r.mu.Lock()
	delete(r.engines, key)
	r.mu.Unlock()
}

// Evict drops engines not used within idle and returns how many were removed.
func (r *Registry) Evict(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	n := 0
	for key, ent := range r.engines {
		if ent.lastUsed.Before(cutoff) {
			delete(r.engines, key)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}
