package store

import (
	"sync"

	"github.com/picklr-io/infraviz/internal/ir"
)

// SessionStore holds at most one deploy session.
type SessionStore struct {
	mu      sync.RWMutex
	current *ir.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Configure replaces the session unconditionally.
func (s *SessionStore) Configure(sess ir.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &sess
}

// Get returns the current session; false means no session is configured.
func (s *SessionStore) Get() (ir.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ir.Session{}, false
	}
	return *s.current, true
}

// Clear empties the slot.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// CompareAndSwap installs next only if the slot still holds old. A nil old
// means the slot must be empty. It reports whether the swap happened.
func (s *SessionStore) CompareAndSwap(old *ir.Session, next ir.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case old == nil && s.current != nil:
		return false
	case old != nil && (s.current == nil || *s.current != *old):
		return false
	}
	s.current = &next
	return true
}
