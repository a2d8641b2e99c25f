// Package session implements per-connection session state: the
// authenticated user and the set of active tree-connects, keyed by a
// 64-bit session id that Registry.Create allocates.
package session

import (
	"sync"
	"sync/atomic"
)

// Session is one authenticated kernel connection's control-plane state.
type Session struct {
	ID uint64

	mu           sync.RWMutex
	username     string
	isGuest      bool
	treeConnects map[uint64]string // connect id -> share name
}

func newSession(id uint64, username string, isGuest bool) *Session {
	return &Session{ID: id, username: username, isGuest: isGuest, treeConnects: make(map[uint64]string)}
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) IsGuest() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isGuest
}

// AddTreeConnect registers a tree-connect id bound to shareName.
func (s *Session) AddTreeConnect(connectID uint64, shareName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treeConnects[connectID] = shareName
}

// RemoveTreeConnect removes a tree-connect id, returning the share name
// it was bound to (empty if it was not present).
func (s *Session) RemoveTreeConnect(connectID uint64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.treeConnects[connectID]
	delete(s.treeConnects, connectID)
	return name
}

// TreeConnectShare returns the share name bound to connectID, if any.
func (s *Session) TreeConnectShare(connectID uint64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.treeConnects[connectID]
	return name, ok
}

// TreeConnectCount reports the number of active tree-connects.
func (s *Session) TreeConnectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.treeConnects)
}

// Registry is the process-wide session index, keyed by the 64-bit
// session id it allocates.
type Registry struct {
	sessions sync.Map // uint64 -> *Session
	nextID   atomic.Uint64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Create allocates a new session id and registers the session.
func (r *Registry) Create(username string, isGuest bool) *Session {
	id := r.nextID.Add(1)
	s := newSession(id, username, isGuest)
	r.sessions.Store(id, s)
	return s
}

// Get retrieves a session by id.
func (r *Registry) Get(id uint64) (*Session, bool) {
	v, ok := r.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Delete removes a session (logout or connection reset).
func (r *Registry) Delete(id uint64) {
	r.sessions.Delete(id)
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
