package share

import (
	"fmt"
	"strings"
	"sync"
)

// Registry is the process's in-memory set of configured shares, keyed by
// case-insensitive name. Writers only run at startup and on reload;
// readers run on every handler invocation, so lookups take a read lock
// and hand the caller an Acquire()'d reference that survives a
// concurrent reload (spec.md §5 "Reload atomicity").
type Registry struct {
	mu     sync.RWMutex
	shares map[string]*Share
	order  []string // insertion order, for enumeration determinism
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{shares: make(map[string]*Share)}
}

// Add inserts s, failing if the name (case-insensitively) is already
// registered.
func (r *Registry) Add(s *Share) error {
	key := strings.ToLower(s.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.shares[key]; exists {
		return fmt.Errorf("share: duplicate name %q", s.Name())
	}
	r.shares[key] = s
	r.order = append(r.order, key)
	return nil
}

// Lookup returns an Acquire()'d reference to the named share, or false.
func (r *Registry) Lookup(name string) (*Share, bool) {
	key := strings.ToLower(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shares[key]
	if !ok {
		return nil, false
	}
	return s.Acquire(), true
}

// ForEach calls fn with an Acquire()'d reference to every share in
// insertion order, releasing it once fn returns. Iteration stops early
// if fn returns false. The snapshot of names is taken under the read
// lock so a concurrent Replace cannot interleave with one iteration.
func (r *Registry) ForEach(fn func(*Share) bool) {
	r.mu.RLock()
	snapshot := make([]*Share, 0, len(r.order))
	for _, key := range r.order {
		if s, ok := r.shares[key]; ok {
			snapshot = append(snapshot, s.Acquire())
		}
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		cont := fn(s)
		s.Release()
		if !cont {
			return
		}
	}
}

// Replace atomically swaps the registry's contents with newShares.
// In-flight handlers holding a reference from before the swap keep
// their own Acquire()'d Share pointer and are unaffected (spec.md §5
// "Reload atomicity"); this call only changes what future Lookup/
// ForEach calls observe.
func (r *Registry) Replace(newShares []*Share) {
	shares := make(map[string]*Share, len(newShares))
	order := make([]string, 0, len(newShares))
	for _, s := range newShares {
		key := strings.ToLower(s.Name())
		shares[key] = s
		order = append(order, key)
	}
	r.mu.Lock()
	r.shares, r.order = shares, order
	r.mu.Unlock()
}

// Len reports the number of registered shares.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shares)
}
