package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sat-daily-quiz/internal/domain"
)

// Leaderboard defaults.
const (
	DefaultTopN       = 20
	DefaultCapacity   = 1000
	DefaultRateLimit  = 5
	DefaultRateWindow = 15 * time.Minute
)

// LeaderboardStore keeps entries per date keyed by lower-cased display name
// (in-memory, Redis, Postgres).
type LeaderboardStore interface {
	Get(ctx context.Context, date, nameKey string) (domain.LeaderboardEntry, bool, error)
	Upsert(ctx context.Context, date, nameKey string, entry domain.LeaderboardEntry) error
	List(ctx context.Context, date string) ([]domain.LeaderboardEntry, error)
	Count(ctx context.Context, date string) (int, error)
}

// RateLimiter admits at most a fixed number of events per window per client.
type RateLimiter interface {
	Allow(ctx context.Context, clientID string) (allowed bool, retryAfter time.Duration, err error)
}

// NameKey is the identity of a display name within a date.
func NameKey(displayName string) string {
	return strings.ToLower(strings.TrimSpace(displayName))
}

// LeaderboardService validates, rate-limits and ranks daily results.
type LeaderboardService struct {
	store     LeaderboardStore
	limiter   RateLimiter
	validator *SubmissionValidator
	now       func() time.Time
	capacity  int
	topN      int
	log       *logrus.Entry
	observer  Observer

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	subsMu      sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]domain.Grade
}

// LeaderboardOption customises a LeaderboardService.
type LeaderboardOption func(*LeaderboardService)

// WithCapacity bounds the number of entries stored per date.
func WithCapacity(n int) LeaderboardOption {
	return func(s *LeaderboardService) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithTopN sets how many ranked entries a query returns.
func WithTopN(n int) LeaderboardOption {
	return func(s *LeaderboardService) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithLeaderboardClock pins the clock used for createdAt and date ranges.
func WithLeaderboardClock(now func() time.Time) LeaderboardOption {
	return func(s *LeaderboardService) { s.now = now }
}

// WithDenylist replaces the built-in display-name denylist.
func WithDenylist(words []string) LeaderboardOption {
	return func(s *LeaderboardService) {
		s.validator = NewSubmissionValidator(words, func() time.Time { return s.now() })
	}
}

// WithLeaderboardObserver reports outcomes to o.
func WithLeaderboardObserver(o Observer) LeaderboardOption {
	return func(s *LeaderboardService) { s.observer = o }
}

func NewLeaderboardService(store LeaderboardStore, limiter RateLimiter, log *logrus.Entry, opts ...LeaderboardOption) *LeaderboardService {
	s := &LeaderboardService{
		store:       store,
		limiter:     limiter,
		now:         time.Now,
		capacity:    DefaultCapacity,
		topN:        DefaultTopN,
		log:         log,
		observer:    nopObserver{},
		locks:       make(map[string]*sync.Mutex),
		subscribers: make(map[string]map[chan domain.Leaderboard]domain.Grade),
	}
	s.validator = NewSubmissionValidator(nil, func() time.Time { return s.now() })
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates sub, applies the client's rate limit and upserts the entry.
// An entry is replaced only by a higher score, or an equal score in less time;
// anything else is ignored without error.
func (s *LeaderboardService) Submit(ctx context.Context, clientID string, sub domain.LeaderboardSubmission) (domain.UpsertOutcome, error) {
	entry, date, err := s.validator.Validate(sub)
	if err != nil {
		s.observer.LeaderboardRejected("validation")
		return "", err
	}

	allowed, retryAfter, err := s.limiter.Allow(ctx, clientID)
	if err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	if !allowed {
		s.observer.LeaderboardRejected("rate_limited")
		s.log.WithFields(logrus.Fields{"client": clientID, "retry_after": retryAfter.String()}).Warn("leaderboard submission rate limited")
		return "", &domain.RateLimitError{RetryAfter: retryAfter}
	}

	key := NameKey(entry.DisplayName)
	entry.CreatedAt = s.now().UTC()

	lock := s.dateLock(date)
	lock.Lock()
	defer lock.Unlock()

	stored, found, err := s.store.Get(ctx, date, key)
	if err != nil {
		return "", fmt.Errorf("load entry: %w", err)
	}

	outcome := domain.OutcomeIgnored
	switch {
	case !found:
		count, err := s.store.Count(ctx, date)
		if err != nil {
			return "", fmt.Errorf("count entries: %w", err)
		}
		if count >= s.capacity {
			s.observer.LeaderboardRejected("capacity")
			return "", domain.ErrCapacityExceeded
		}
		outcome = domain.OutcomeInserted
	case Better(entry, stored):
		outcome = domain.OutcomeReplaced
	}

	if outcome != domain.OutcomeIgnored {
		if err := s.store.Upsert(ctx, date, key, entry); err != nil {
			return "", fmt.Errorf("upsert entry: %w", err)
		}
		s.broadcast(ctx, date)
	}

	s.observer.LeaderboardSubmitted(outcome)
	s.log.WithFields(logrus.Fields{
		"date":    date,
		"name":    key,
		"score":   entry.Score,
		"elapsed": entry.ElapsedSeconds,
		"outcome": outcome,
	}).Info("leaderboard submission")
	return outcome, nil
}

// Better reports whether candidate should replace stored.
func Better(candidate, stored domain.LeaderboardEntry) bool {
	if candidate.Score != stored.Score {
		return candidate.Score > stored.Score
	}
	return candidate.ElapsedSeconds < stored.ElapsedSeconds
}

// Query returns the top entries for date, optionally restricted to grade.
func (s *LeaderboardService) Query(ctx context.Context, date, grade string) (domain.Leaderboard, error) {
	if _, err := ParseDate(date); err != nil {
		return domain.Leaderboard{}, domain.ErrInvalidDate
	}
	g := domain.Grade(strings.TrimSpace(grade))
	if g != "" && !g.Valid() {
		return domain.Leaderboard{}, domain.ErrInvalidGrade
	}
	return s.snapshot(ctx, date, g)
}

func (s *LeaderboardService) snapshot(ctx context.Context, date string, grade domain.Grade) (domain.Leaderboard, error) {
	all, err := s.store.List(ctx, date)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list entries: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(all))
	for _, e := range all {
		if grade == "" || e.Grade == grade {
			entries = append(entries, e)
		}
	}
	Rank(entries)

	total := len(entries)
	if len(entries) > s.topN {
		entries = entries[:s.topN]
	}
	return domain.Leaderboard{
		Date:      date,
		Grade:     grade,
		Total:     total,
		Entries:   entries,
		UpdatedAt: s.now().UTC(),
	}, nil
}

// Rank orders entries by score desc, elapsed asc, then earliest submission.
func Rank(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].ElapsedSeconds != entries[j].ElapsedSeconds {
			return entries[i].ElapsedSeconds < entries[j].ElapsedSeconds
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

func (s *LeaderboardService) dateLock(date string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[date]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[date] = lock
	}
	return lock
}

// Subscribe streams ranked snapshots for date (and grade, if set) after every
// accepted change. The caller must invoke the returned cancel function.
func (s *LeaderboardService) Subscribe(ctx context.Context, date, grade string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Query(ctx, date, grade)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	s.subsMu.Lock()
	if s.subscribers[date] == nil {
		s.subscribers[date] = make(map[chan domain.Leaderboard]domain.Grade)
	}
	s.subscribers[date][ch] = initial.Grade
	s.subsMu.Unlock()

	cancel := func() {
		s.subsMu.Lock()
		if subs, ok := s.subscribers[date]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(s.subscribers, date)
			}
		}
		s.subsMu.Unlock()
	}
	return ch, cancel, nil
}

func (s *LeaderboardService) broadcast(ctx context.Context, date string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	subs := s.subscribers[date]
	if len(subs) == 0 {
		return
	}
	byGrade := make(map[domain.Grade]domain.Leaderboard)
	for ch, grade := range subs {
		lb, ok := byGrade[grade]
		if !ok {
			var err error
			lb, err = s.snapshot(ctx, date, grade)
			if err != nil {
				s.log.WithError(err).Warn("leaderboard broadcast snapshot failed")
				return
			}
			byGrade[grade] = lb
		}
		select {
		case ch <- lb:
		default:
			// drop the stale snapshot so slow clients never block submissions
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
