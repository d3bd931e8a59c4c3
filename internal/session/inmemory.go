package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process session store for local/dev use.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*Session)}
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(sess), nil
}

func (s *InMemoryStore) Put(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := clone(sess)
	cp.UpdatedAt = time.Now().UTC()
	s.sessions[sess.ID] = cp
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

func (s *InMemoryStore) Close() error { return nil }

// clone deep-copies a session so callers never share slices or pointers
// with the stored copy. Sessions are plain data, so a JSON round trip is
// the simplest faithful copy.
func clone(sess *Session) *Session {
	raw, err := json.Marshal(sess)
	if err != nil {
		cp := *sess
		return &cp
	}
	var cp Session
	if err := json.Unmarshal(raw, &cp); err != nil {
		shallow := *sess
		return &shallow
	}
	return &cp
}
