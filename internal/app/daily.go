package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sat-daily-quiz/internal/domain"
)

// DateLayout is the calendar-date format used for seeds, keys and leaderboard dates.
const DateLayout = "2006-01-02"

// QuestionSource lists question-bank records (file, Postgres, cache, etc).
type QuestionSource interface {
	ListQuestions(ctx context.Context, filter domain.SubjectFilter) ([]domain.Question, error)
}

// DailySeed returns the UTC calendar date of t; it changes only at UTC midnight.
func DailySeed(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DailyQuizService builds and caches the quiz of the day.
type DailyQuizService struct {
	source QuestionSource
	now    func() time.Time
	sf     singleflight.Group

	mu   sync.RWMutex
	sets map[string]domain.DailyQuizSet
}

func NewDailyQuizService(source QuestionSource) *DailyQuizService {
	return NewDailyQuizServiceWithClock(source, time.Now)
}

// NewDailyQuizServiceWithClock is used by tests to pin the current date.
func NewDailyQuizServiceWithClock(source QuestionSource, now func() time.Time) *DailyQuizService {
	return &DailyQuizService{
		source: source,
		now:    now,
		sets:   make(map[string]domain.DailyQuizSet),
	}
}

// Today returns the quiz for the current UTC date.
func (s *DailyQuizService) Today(ctx context.Context) (domain.DailyQuizSet, error) {
	return s.ForDate(ctx, DailySeed(s.now()))
}

// ForDate returns the quiz for date, generating it once per process.
func (s *DailyQuizService) ForDate(ctx context.Context, date string) (domain.DailyQuizSet, error) {
	s.mu.RLock()
	if set, ok := s.sets[date]; ok {
		s.mu.RUnlock()
		return set, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do(date, func() (interface{}, error) {
		pool, err := s.source.ListQuestions(ctx, domain.SubjectFilter{})
		if err != nil {
			if errors.Is(err, domain.ErrPoolUnavailable) {
				return domain.DailyQuizSet{}, err
			}
			return domain.DailyQuizSet{}, fmt.Errorf("%w: %v", domain.ErrPoolUnavailable, err)
		}
		set, err := SelectDaily(date, pool)
		if err != nil {
			return domain.DailyQuizSet{}, err
		}

		s.mu.Lock()
		s.sets[date] = set
		s.evictLocked(date)
		s.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.DailyQuizSet{}, err
	}
	return result.(domain.DailyQuizSet), nil
}

// evictLocked drops cached sets other than keep and its neighbouring days.
func (s *DailyQuizService) evictLocked(keep string) {
	if len(s.sets) <= 3 {
		return
	}
	day, err := time.Parse(DateLayout, keep)
	if err != nil {
		return
	}
	retain := map[string]bool{
		keep:                                     true,
		day.AddDate(0, 0, -1).Format(DateLayout): true,
		day.AddDate(0, 0, 1).Format(DateLayout):  true,
	}
	for date := range s.sets {
		if !retain[date] {
			delete(s.sets, date)
		}
	}
}
