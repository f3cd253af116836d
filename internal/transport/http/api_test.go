package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sat-daily-quiz/internal/app"
	"sat-daily-quiz/internal/domain"
	"sat-daily-quiz/internal/infra/memory"
	"sat-daily-quiz/internal/logger"
	"sat-daily-quiz/internal/metrics"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func testPool() []domain.Question {
	difficulties := []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard}
	var pool []domain.Question
	for _, subject := range []domain.Subject{domain.SubjectEnglish, domain.SubjectMath} {
		prefix := "en"
		if subject == domain.SubjectMath {
			prefix = "ma"
		}
		for i := 0; i < 9; i++ {
			pool = append(pool, domain.Question{
				ID:             fmt.Sprintf("%s-%02d", prefix, i),
				Subject:        subject,
				Difficulty:     difficulties[i%3],
				Type:           domain.TypeMultipleChoice,
				Stem:           "stem",
				Choices:        []domain.Choice{{Key: "A", Text: "a"}, {Key: "B", Text: "b"}},
				CorrectAnswers: []string{"A"},
				Rationale:      "because",
			})
		}
	}
	return pool
}

type testEnv struct {
	api   *API
	ticks chan time.Time
}

func newTestEnv(t *testing.T, pool []domain.Question) *testEnv {
	t.Helper()
	clock := func() time.Time { return testNow }
	log := logger.Discard()
	source := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(pool), time.Minute)
	m := metrics.New("sat_daily_quiz")

	ticks := make(chan time.Time)
	daily := app.NewDailyQuizServiceWithClock(source, clock)
	sessions := app.NewSessionManager(daily, memory.NewSessionStore(), log,
		app.WithSessionClock(clock),
		app.WithTicker(func() (<-chan time.Time, func()) { return ticks, func() {} }),
		app.WithSessionObserver(m),
	)
	limiter := memory.NewRateLimiterWithClock(app.DefaultRateLimit, app.DefaultRateWindow, clock)
	leaderboard := app.NewLeaderboardService(memory.NewLeaderboardStore(), limiter, log,
		app.WithLeaderboardClock(clock),
		app.WithLeaderboardObserver(m),
	)
	practice := app.NewPracticeService(source)

	prev := timeNow
	timeNow = clock
	t.Cleanup(func() { timeNow = prev })

	return &testEnv{
		api:   NewAPI(daily, sessions, leaderboard, practice, m, log),
		ticks: ticks,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func validSubmission(name string, score int) map[string]any {
	return map[string]any{
		"displayName":    name,
		"grade":          "11",
		"score":          score,
		"percent":        score * 10,
		"elapsedSeconds": 300,
		"date":           "2024-03-15",
	}
}

func TestHealthzAndRequestID(t *testing.T) {
	env := newTestEnv(t, testPool())
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/healthz", nil, map[string]string{"X-Request-ID": "req-1"})
	require.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

func TestPostLeaderboard(t *testing.T) {
	env := newTestEnv(t, testPool())
	client := map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}

	rec := env.do(t, http.MethodPost, "/api/leaderboard", validSubmission("Alice", 7), client)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, domain.OutcomeInserted, decode[submitResponse](t, rec).Status)

	rec = env.do(t, http.MethodPost, "/api/leaderboard", validSubmission("alice", 6), client)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.OutcomeIgnored, decode[submitResponse](t, rec).Status)

	rec = env.do(t, http.MethodPost, "/api/leaderboard", validSubmission("ALICE", 9), client)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.OutcomeReplaced, decode[submitResponse](t, rec).Status)

	bad := validSubmission("x", 11)
	rec = env.do(t, http.MethodPost, "/api/leaderboard", bad, client)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[errorResponse](t, rec).Fields
	require.Contains(t, fields, "displayName")
	require.Contains(t, fields, "score")

	missing := validSubmission("Carol", 5)
	delete(missing, "score")
	rec = env.do(t, http.MethodPost, "/api/leaderboard", missing, client)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, map[string]string{"score": "is required"}, decode[errorResponse](t, rec).Fields)

	rec = env.do(t, http.MethodPost, "/api/leaderboard", "{not json", client)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[errorResponse](t, rec).Fields, "body")
}

func TestPostLeaderboardRateLimited(t *testing.T) {
	env := newTestEnv(t, testPool())
	client := map[string]string{"X-Real-IP": "198.51.100.4"}

	for i := 0; i < app.DefaultRateLimit; i++ {
		rec := env.do(t, http.MethodPost, "/api/leaderboard", validSubmission(fmt.Sprintf("Player %d", i), 5), client)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodPost, "/api/leaderboard", validSubmission("Player X", 5), client)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "900", rec.Header().Get("Retry-After"))
	require.Equal(t, 900, decode[errorResponse](t, rec).RetryAfterSeconds)

	other := env.do(t, http.MethodPost, "/api/leaderboard", validSubmission("Player X", 5), map[string]string{"X-Real-IP": "198.51.100.5"})
	require.Equal(t, http.StatusCreated, other.Code)
}

func TestGetLeaderboard(t *testing.T) {
	env := newTestEnv(t, testPool())
	for i, name := range []string{"Ann", "Ben", "Cat"} {
		sub := validSubmission(name, 5+i)
		if name == "Ben" {
			sub["grade"] = "9"
		}
		rec := env.do(t, http.MethodPost, "/api/leaderboard", sub, map[string]string{"X-Real-IP": name})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/leaderboard?date=2024-03-15", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))
	require.Equal(t, "public, max-age=15, s-maxage=30", rec.Header().Get("Cache-Control"))
	lb := decode[domain.Leaderboard](t, rec)
	require.Equal(t, []string{"Cat", "Ben", "Ann"}, []string{lb.Entries[0].DisplayName, lb.Entries[1].DisplayName, lb.Entries[2].DisplayName})

	rec = env.do(t, http.MethodGet, "/api/leaderboard?date=2024-03-15&grade=9", nil, nil)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec = env.do(t, http.MethodGet, "/api/leaderboard?date=15-03-2024", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid date", decode[errorResponse](t, rec).Error)

	rec = env.do(t, http.MethodGet, "/api/leaderboard?date=2024-03-15&grade=8", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid grade", decode[errorResponse](t, rec).Error)
}

func TestGetDailyQuizHidesAnswers(t *testing.T) {
	env := newTestEnv(t, testPool())
	rec := env.do(t, http.MethodGet, "/api/daily/quiz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	set := decode[domain.DailyQuizSet](t, rec)
	require.Equal(t, "2024-03-15", set.Date)
	require.Len(t, set.Questions, app.DailyQuizSize)
	for i, q := range set.Questions {
		require.Empty(t, q.CorrectAnswers)
		require.Empty(t, q.Rationale)
		want := domain.SubjectEnglish
		if i%2 == 1 {
			want = domain.SubjectMath
		}
		require.Equal(t, want, q.Subject)
	}
}

func TestDailySessionFlow(t *testing.T) {
	env := newTestEnv(t, testPool())
	owner := map[string]string{"X-Client-ID": "device_1"}

	rec := env.do(t, http.MethodGet, "/api/daily", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[app.SessionView](t, rec)
	require.Equal(t, app.SessionLimitSeconds, view.RemainingSeconds)
	require.Len(t, view.Questions, app.DailyQuizSize)
	require.Empty(t, view.Questions[0].CorrectAnswers)
	first, second := view.Questions[0].ID, view.Questions[1].ID

	rec = env.do(t, http.MethodPost, "/api/daily/answer", answerRequest{QuestionID: first, Value: "A"}, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "A", decode[app.SessionView](t, rec).Answers[first])

	rec = env.do(t, http.MethodPost, "/api/daily/answer", answerRequest{QuestionID: "nope", Value: "A"}, owner)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/daily/flag", flagRequest{QuestionID: second}, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, flagResponse{QuestionID: second, Flagged: true}, decode[flagResponse](t, rec))

	// the same owner passed as a query parameter resolves to the same session
	rec = env.do(t, http.MethodPost, "/api/daily/submit?client=device_1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[app.SessionView](t, rec)
	require.True(t, view.Submitted)
	require.NotNil(t, view.Result)
	require.Equal(t, 1, view.Result.Score)
	require.Equal(t, 10, view.Result.Percent)
	require.Equal(t, []string{"A"}, view.Questions[0].CorrectAnswers)

	rec = env.do(t, http.MethodPost, "/api/daily/answer", answerRequest{QuestionID: second, Value: "A"}, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	_, answered := decode[app.SessionView](t, rec).Answers[second]
	require.False(t, answered, "submitted sessions ignore answers")

	rec = env.do(t, http.MethodGet, "/api/daily", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[errorResponse](t, rec).Fields, "client")

	rec = env.do(t, http.MethodPost, "/api/daily/answer", "[", owner)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDailyPoolErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/daily/quiz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "30", rec.Header().Get("Retry-After"))

	env = newTestEnv(t, testPool()[:12])
	rec = env.do(t, http.MethodGet, "/api/daily?client=abc", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Empty(t, rec.Header().Get("Retry-After"))
}

func TestGetPractice(t *testing.T) {
	env := newTestEnv(t, testPool())

	rec := env.do(t, http.MethodGet, "/api/questions?subject=Math&difficulty=Hard&limit=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	questions := decode[[]domain.Question](t, rec)
	require.Len(t, questions, 2)
	for _, q := range questions {
		require.Equal(t, domain.SubjectMath, q.Subject)
		require.Equal(t, domain.DifficultyHard, q.Difficulty)
		require.Empty(t, q.CorrectAnswers)
	}

	rec = env.do(t, http.MethodGet, "/api/questions", nil, nil)
	require.Len(t, decode[[]domain.Question](t, rec), 10)

	rec = env.do(t, http.MethodGet, "/api/questions?limit=0", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/questions?subject=Art", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, testPool())
	env.do(t, http.MethodGet, "/api/leaderboard?date=bad", nil, nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `sat_daily_quiz_http_requests_total{route="leaderboard_query",status="400"} 1`)
}

func TestClientIdentity(t *testing.T) {
	cases := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "forwarded chain", header: map[string]string{"X-Forwarded-For": " 1.1.1.1 , 2.2.2.2"}, want: "1.1.1.1"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "3.3.3.3"}, want: "3.3.3.3"},
		{name: "cloudflare", header: map[string]string{"CF-Connecting-IP": "4.4.4.4"}, want: "4.4.4.4"},
		{name: "forwarded wins", header: map[string]string{"X-Forwarded-For": "5.5.5.5", "X-Real-IP": "6.6.6.6"}, want: "5.5.5.5"},
		{name: "remote addr", remote: "7.7.7.7:5555", want: "7.7.7.7"},
		{name: "remote without port", remote: "unix", want: "unix"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.remote != "" {
				req.RemoteAddr = tc.remote
			}
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			require.Equal(t, tc.want, clientIdentity(req))
		})
	}
}

func TestWriteServiceErrorFallback(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, context.DeadlineExceeded)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	writeServiceError(rec, domain.ErrCapacityExceeded)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Empty(t, rec.Header().Get("Retry-After"))
}
