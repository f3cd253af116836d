package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sat-daily-quiz/internal/domain"
)

// SessionLimitSeconds is the fixed length of a daily quiz attempt.
const SessionLimitSeconds = 720

const persistTimeout = 2 * time.Second

// SessionStore persists session snapshots (sqlite file, Redis, memory).
type SessionStore interface {
	Load(ctx context.Context, owner, key string) (domain.SessionState, bool, error)
	Save(ctx context.Context, owner, key string, state domain.SessionState) error
}

// SessionKey is the storage key of the session for date.
func SessionKey(date string) string {
	return "daily-" + date
}

// Foreground reports whether the view hosting a session is visible.
type Foreground interface {
	Foreground() bool
}

// ForegroundFunc adapts a function to Foreground.
type ForegroundFunc func() bool

func (f ForegroundFunc) Foreground() bool { return f() }

// Ticker starts a tick source and returns it with its stop function.
type Ticker func() (<-chan time.Time, func())

// EverySecond is the production tick source.
func EverySecond() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

// SessionView is the client-facing projection of a session.
type SessionView struct {
	ID               string            `json:"id"`
	Date             string            `json:"date"`
	Questions        []domain.Question `json:"questions"`
	Answers          map[string]string `json:"answers"`
	Flags            []string          `json:"flags"`
	StartedAt        time.Time         `json:"startedAt"`
	RemainingSeconds int               `json:"remainingSeconds"`
	Submitted        bool              `json:"submitted"`
	Result           *domain.Result    `json:"result,omitempty"`
}

// QuizSession is one user's daily attempt. All methods are safe for concurrent use;
// mutations are serialized on the session mutex.
type QuizSession struct {
	owner    string
	store    SessionStore
	ticker   Ticker
	log      *logrus.Entry
	observer Observer

	mu          sync.Mutex
	state       domain.SessionState
	views       map[int]Foreground
	nextView    int
	stopTimer   context.CancelFunc
	done        chan struct{}
	subscribers map[chan SessionView]struct{}
}

func newQuizSession(owner string, state domain.SessionState, store SessionStore, ticker Ticker, log *logrus.Entry, observer Observer) *QuizSession {
	if state.Answers == nil {
		state.Answers = make(map[string]string)
	}
	if state.Flags == nil {
		state.Flags = make(map[string]bool)
	}
	s := &QuizSession{
		owner:       owner,
		store:       store,
		ticker:      ticker,
		log:         log.WithFields(logrus.Fields{"owner": owner, "session_id": state.ID, "date": state.Date}),
		observer:    observer,
		state:       state,
		views:       make(map[int]Foreground),
		done:        make(chan struct{}),
		subscribers: make(map[chan SessionView]struct{}),
	}
	if state.Submitted {
		close(s.done)
	}
	return s
}

// RecordAnswer stores value verbatim for questionID. It reports whether the
// answer was applied; submitted sessions ignore the call.
func (s *QuizSession) RecordAnswer(questionID, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Submitted {
		return false, nil
	}
	if !s.hasQuestionLocked(questionID) {
		return false, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}
	s.state.Answers[questionID] = value
	s.persistLocked()
	s.broadcastLocked()
	return true, nil
}

// ToggleFlag flips the review flag of questionID and returns the new flag value.
func (s *QuizSession) ToggleFlag(questionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Submitted {
		return s.state.Flags[questionID], nil
	}
	if !s.hasQuestionLocked(questionID) {
		return false, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}
	if s.state.Flags[questionID] {
		delete(s.state.Flags, questionID)
	} else {
		s.state.Flags[questionID] = true
	}
	s.persistLocked()
	s.broadcastLocked()
	return s.state.Flags[questionID], nil
}

// Tick advances the countdown by one second while a view is in the foreground.
// Reaching zero submits the session.
func (s *QuizSession) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Submitted || !s.foregroundLocked() {
		return
	}
	if s.state.RemainingSeconds > 0 {
		s.state.RemainingSeconds--
	}
	if s.state.RemainingSeconds <= 0 {
		s.submitLocked(true)
		return
	}
	s.persistLocked()
	s.broadcastLocked()
}

// Submit scores the session once; later calls return the stored result.
func (s *QuizSession) Submit() domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Submitted {
		s.submitLocked(false)
	}
	return *s.state.Result
}

func (s *QuizSession) submitLocked(auto bool) {
	result := Score(s.state.Questions, s.state.Answers, s.state.RemainingSeconds)
	s.state.Submitted = true
	s.state.Result = &result
	close(s.done)
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.persistLocked()
	s.broadcastLocked()
	s.observer.SessionSubmitted(auto)
	s.log.WithFields(logrus.Fields{
		"score":   result.Score,
		"elapsed": result.ElapsedSeconds,
		"auto":    auto,
	}).Info("daily session submitted")
}

// Score computes the result of answers against questions with remaining seconds left.
func Score(questions []domain.Question, answers map[string]string, remaining int) domain.Result {
	score := 0
	for _, q := range questions {
		given, ok := answers[q.ID]
		if !ok {
			continue
		}
		if answerMatches(given, q.CorrectAnswers) {
			score++
		}
	}

	if remaining < 0 {
		remaining = 0
	}
	elapsed := SessionLimitSeconds - remaining
	if elapsed < 0 {
		elapsed = 0
	}

	percent := 0
	if len(questions) > 0 {
		percent = int(math.Round(100 * float64(score) / float64(len(questions))))
	}
	return domain.Result{Score: score, Percent: percent, ElapsedSeconds: elapsed}
}

func answerMatches(given string, correct []string) bool {
	given = strings.TrimSpace(given)
	if given == "" {
		return false
	}
	for _, c := range correct {
		if strings.EqualFold(given, strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}

// Attach registers a view whose visibility gates the timer. The first attached
// view starts the countdown; detaching the last one stops it.
func (s *QuizSession) Attach(view Foreground) (detach func()) {
	s.mu.Lock()
	id := s.nextView
	s.nextView++
	s.views[id] = view
	if s.stopTimer == nil && !s.state.Submitted && s.ticker != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopTimer = cancel
		ticks, stop := s.ticker()
		go func() {
			defer stop()
			s.Run(ctx, ticks)
		}()
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.views, id)
			if len(s.views) == 0 && s.stopTimer != nil {
				s.stopTimer()
				s.stopTimer = nil
			}
		})
	}
}

// Run calls Tick for every tick until the session is submitted or ctx is done.
// Missed ticks are not replayed.
func (s *QuizSession) Run(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticks:
			// select may pick a pending tick over a cancellation that already happened
			if ctx.Err() != nil {
				return
			}
			s.Tick()
		}
	}
}

// Done is closed once the session is submitted.
func (s *QuizSession) Done() <-chan struct{} {
	return s.done
}

func (s *QuizSession) foregroundLocked() bool {
	for _, v := range s.views {
		if v.Foreground() {
			return true
		}
	}
	return false
}

func (s *QuizSession) hasQuestionLocked(questionID string) bool {
	for _, q := range s.state.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

// persistLocked saves the full state; failures only degrade durability.
func (s *QuizSession) persistLocked() {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.Save(ctx, s.owner, SessionKey(s.state.Date), s.snapshotLocked()); err != nil {
		s.log.WithError(fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)).Warn("session persistence failed")
	}
}

func (s *QuizSession) snapshotLocked() domain.SessionState {
	state := s.state
	state.Answers = make(map[string]string, len(s.state.Answers))
	for k, v := range s.state.Answers {
		state.Answers[k] = v
	}
	state.Flags = make(map[string]bool, len(s.state.Flags))
	for k, v := range s.state.Flags {
		state.Flags[k] = v
	}
	if s.state.Result != nil {
		r := *s.state.Result
		state.Result = &r
	}
	return state
}

// State returns a copy of the persisted form.
func (s *QuizSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// View returns the client projection; answer keys stay hidden until submitted.
func (s *QuizSession) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *QuizSession) viewLocked() SessionView {
	state := s.snapshotLocked()
	questions := make([]domain.Question, len(state.Questions))
	for i, q := range state.Questions {
		if state.Submitted {
			questions[i] = q
		} else {
			questions[i] = q.Public()
		}
	}
	flags := make([]string, 0, len(state.Flags))
	for id := range state.Flags {
		flags = append(flags, id)
	}
	sort.Strings(flags)
	return SessionView{
		ID:               state.ID,
		Date:             state.Date,
		Questions:        questions,
		Answers:          state.Answers,
		Flags:            flags,
		StartedAt:        state.StartedAt,
		RemainingSeconds: state.RemainingSeconds,
		Submitted:        state.Submitted,
		Result:           state.Result,
	}
}

// Subscribe returns a channel of views sent after every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizSession) Subscribe() (<-chan SessionView, func()) {
	ch := make(chan SessionView, 4)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.viewLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *QuizSession) broadcastLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	view := s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// drop the stale view so a slow reader never blocks the session
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}
