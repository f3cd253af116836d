package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sat-daily-quiz/internal/domain"
)

// LeaderboardStore keeps one hash per date:
//
//	HSET leaderboard:{date} {nameKey} <entry json>
//
// Hashes expire ttl after their last write so old dates age out.
type LeaderboardStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardStore(client *redis.Client, ttl time.Duration) *LeaderboardStore {
	return &LeaderboardStore{client: client, ttl: ttl}
}

func (s *LeaderboardStore) Get(ctx context.Context, date, nameKey string) (domain.LeaderboardEntry, bool, error) {
	raw, err := s.client.HGet(ctx, s.key(date), nameKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.LeaderboardEntry{}, false, nil
	}
	if err != nil {
		return domain.LeaderboardEntry{}, false, err
	}
	var entry domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.LeaderboardEntry{}, false, fmt.Errorf("decode entry %s/%s: %w", date, nameKey, err)
	}
	return entry, true, nil
}

func (s *LeaderboardStore) Upsert(ctx context.Context, date, nameKey string, entry domain.LeaderboardEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(date), nameKey, raw)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(date), s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *LeaderboardStore) List(ctx context.Context, date string) ([]domain.LeaderboardEntry, error) {
	values, err := s.client.HVals(ctx, s.key(date)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.LeaderboardEntry, 0, len(values))
	for _, raw := range values {
		var entry domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode entry for %s: %w", date, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *LeaderboardStore) Count(ctx context.Context, date string) (int, error) {
	n, err := s.client.HLen(ctx, s.key(date)).Result()
	return int(n), err
}

func (s *LeaderboardStore) key(date string) string {
	return "leaderboard:" + date
}
