package quill

import (
	"sync"

	"github.com/google/uuid"
)

// Session remembers previously collected prompt values across renders.
// Use is opt-in per render via Options.Session; its lifetime is owned by
// the host (typically one editing session), not the process. Writes are
// last-write-wins per variable name.
type Session struct {
	id     string
	mu     sync.RWMutex
	values map[string]string
}

// NewSession creates an empty session store.
func NewSession() *Session {
	return &Session{
		id:     uuid.NewString(),
		values: make(map[string]string),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Get returns the remembered value for a variable.
func (s *Session) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Set remembers a value, replacing any earlier one.
func (s *Session) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// SetAll remembers a batch of collected values.
func (s *Session) SetAll(values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, value := range values {
		s.values[name] = value
	}
}

// Snapshot copies the current values.
func (s *Session) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for name, value := range s.values {
		out[name] = value
	}
	return out
}

// Clear forgets all remembered values.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
}
