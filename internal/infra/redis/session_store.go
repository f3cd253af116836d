package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"sat-daily-quiz/internal/domain"
)

// SessionStore persists session snapshots as JSON strings:
//
//	SET session:{owner}:{key} <state json> EX ttl
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Load(ctx context.Context, owner, key string) (domain.SessionState, bool, error) {
	raw, err := s.client.Get(ctx, s.key(owner, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionState{}, false, nil
	}
	if err != nil {
		return domain.SessionState{}, false, err
	}
	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SessionState{}, false, err
	}
	return state, true, nil
}

func (s *SessionStore) Save(ctx context.Context, owner, key string, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(owner, key), raw, s.ttl).Err()
}

func (s *SessionStore) key(owner, key string) string {
	return "session:" + owner + ":" + key
}
