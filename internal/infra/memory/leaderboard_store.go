package memory

import (
	"context"
	"sync"

	"sat-daily-quiz/internal/domain"
)

// LeaderboardStore is an in-memory implementation of app.LeaderboardStore.
// Entries live until the process exits.
type LeaderboardStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]domain.LeaderboardEntry
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{
		entries: make(map[string]map[string]domain.LeaderboardEntry),
	}
}

func (s *LeaderboardStore) Get(_ context.Context, date, nameKey string) (domain.LeaderboardEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[date][nameKey]
	return entry, ok, nil
}

func (s *LeaderboardStore) Upsert(_ context.Context, date, nameKey string, entry domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byName, ok := s.entries[date]
	if !ok {
		byName = make(map[string]domain.LeaderboardEntry)
		s.entries[date] = byName
	}
	byName[nameKey] = entry
	return nil
}

func (s *LeaderboardStore) List(_ context.Context, date string) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byName := s.entries[date]
	out := make([]domain.LeaderboardEntry, 0, len(byName))
	for _, entry := range byName {
		out = append(out, entry)
	}
	return out, nil
}

func (s *LeaderboardStore) Count(_ context.Context, date string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[date]), nil
}
