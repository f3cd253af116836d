package memory

import (
	"context"
	"encoding/json"
	"sync"

	"sat-daily-quiz/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. States are
// kept serialized so callers never share maps with the store.
type SessionStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		states: make(map[string][]byte),
	}
}

func (s *SessionStore) Load(_ context.Context, owner, key string) (domain.SessionState, bool, error) {
	s.mu.RLock()
	raw, ok := s.states[owner+"/"+key]
	s.mu.RUnlock()
	if !ok {
		return domain.SessionState{}, false, nil
	}
	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SessionState{}, false, err
	}
	return state, true, nil
}

func (s *SessionStore) Save(_ context.Context, owner, key string, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.states[owner+"/"+key] = raw
	s.mu.Unlock()
	return nil
}
