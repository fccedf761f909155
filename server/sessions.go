package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/tape/vm"
)

// ErrSessionNotFound indicates the session ID is unknown or was destroyed.
var ErrSessionNotFound = errors.New("session not found")

// Session is a tape that survives across requests.
type Session struct {
	ID      string
	Name    string
	Config  vm.Config
	State   vm.State
	Created time.Time
	Runs    int
}

// SessionStore manages sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates a new session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create creates a new session with an optional name and a fresh tape.
func (s *SessionStore) Create(name string, cfg vm.Config) *Session {
	session := &Session{
		ID:      uuid.NewString(),
		Name:    name,
		Config:  cfg,
		State:   vm.NewState(),
		Created: time.Now(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Get returns a copy of the session, so callers can run against its state
// without holding the lock.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

// Commit replaces the session's state after a successful run.
func (s *SessionStore) Commit(id string, st vm.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.State = st
	session.Runs++
	return nil
}

// Destroy removes a session. It reports whether the session existed.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
