package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sat-daily-quiz/internal/domain"
)

// SessionManager opens and resumes daily sessions per owner.
type SessionManager struct {
	daily    *DailyQuizService
	store    SessionStore
	now      func() time.Time
	ticker   Ticker
	log      *logrus.Entry
	observer Observer

	mu   chanMutex
	live map[string]*QuizSession
}

// SessionOption customises a SessionManager.
type SessionOption func(*SessionManager)

// WithSessionClock pins the clock used for dates and start times.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

// WithTicker replaces the once-per-second tick source.
func WithTicker(t Ticker) SessionOption {
	return func(m *SessionManager) { m.ticker = t }
}

// WithSessionObserver reports submissions to o.
func WithSessionObserver(o Observer) SessionOption {
	return func(m *SessionManager) { m.observer = o }
}

func NewSessionManager(daily *DailyQuizService, store SessionStore, log *logrus.Entry, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		daily:    daily,
		store:    store,
		now:      time.Now,
		ticker:   EverySecond,
		log:      log,
		observer: nopObserver{},
		mu:       newChanMutex(),
		live:     make(map[string]*QuizSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open returns today's session for owner, resuming a stored one (submitted
// sessions included) or creating it from the daily quiz.
func (m *SessionManager) Open(ctx context.Context, owner string) (*QuizSession, error) {
	if err := m.mu.Lock(ctx); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	date := DailySeed(m.now())
	liveKey := owner + "/" + date
	if session, ok := m.live[liveKey]; ok {
		return session, nil
	}
	m.evictLocked(date)

	key := SessionKey(date)
	state, found, err := m.store.Load(ctx, owner, key)
	if err != nil {
		m.log.WithError(err).WithField("owner", owner).Warn("session store unavailable, starting in memory")
		found = false
	}
	if !found || state.Date != date {
		set, err := m.daily.ForDate(ctx, date)
		if err != nil {
			return nil, err
		}
		state = domain.SessionState{
			ID:               uuid.NewString(),
			Date:             date,
			Questions:        set.Questions,
			Answers:          make(map[string]string),
			Flags:            make(map[string]bool),
			StartedAt:        m.now().UTC(),
			RemainingSeconds: SessionLimitSeconds,
		}
	}

	session := newQuizSession(owner, state, m.store, m.ticker, m.log, m.observer)
	if !found {
		session.mu.Lock()
		session.persistLocked()
		session.mu.Unlock()
		session.log.Info("daily session created")
	}
	m.live[liveKey] = session
	return session, nil
}

// evictLocked forgets live sessions from previous days; their state stays in the store.
func (m *SessionManager) evictLocked(today string) {
	for key, session := range m.live {
		if session.state.Date != today {
			delete(m.live, key)
		}
	}
}

// chanMutex is a mutex whose Lock honours context cancellation; Open may block
// on the question source while holding it.
type chanMutex chan struct{}

func newChanMutex() chanMutex { return make(chanMutex, 1) }

func (m chanMutex) Lock(ctx context.Context) error {
	select {
	case m <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m chanMutex) Unlock() { <-m }
