package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sat-daily-quiz/internal/app"
	"sat-daily-quiz/internal/metrics"
)

// API wires the quiz use cases to HTTP and WebSocket routes.
type API struct {
	daily       *app.DailyQuizService
	sessions    *app.SessionManager
	leaderboard *app.LeaderboardService
	practice    *app.PracticeService
	metrics     *metrics.Metrics
	log         *logrus.Entry
	ws          *WSHandler
}

func NewAPI(daily *app.DailyQuizService, sessions *app.SessionManager, leaderboard *app.LeaderboardService, practice *app.PracticeService, m *metrics.Metrics, log *logrus.Entry) *API {
	return &API{
		daily:       daily,
		sessions:    sessions,
		leaderboard: leaderboard,
		practice:    practice,
		metrics:     m,
		log:         log,
		ws:          NewWSHandler(sessions, leaderboard, log),
	}
}

// Handler returns the routed, logged and instrumented HTTP handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.handle(mux, "GET /healthz", "healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	a.handle(mux, "GET /api/leaderboard", "leaderboard_query", a.getLeaderboard)
	a.handle(mux, "POST /api/leaderboard", "leaderboard_submit", a.postLeaderboard)
	a.handle(mux, "GET /api/daily/quiz", "daily_quiz", a.getDailyQuiz)
	a.handle(mux, "GET /api/daily", "session_open", a.getSession)
	a.handle(mux, "POST /api/daily/answer", "session_answer", a.postAnswer)
	a.handle(mux, "POST /api/daily/flag", "session_flag", a.postFlag)
	a.handle(mux, "POST /api/daily/submit", "session_submit", a.postSubmit)
	a.handle(mux, "GET /api/questions", "practice", a.getPractice)
	a.handle(mux, "GET /ws/daily", "ws_daily", a.ws.ServeSession)
	a.handle(mux, "GET /ws/leaderboard", "ws_leaderboard", a.ws.ServeLeaderboard)
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}
	return mux
}

func (a *API) handle(mux *http.ServeMux, pattern, route string, h http.HandlerFunc) {
	var handler http.Handler = a.logged(route, h)
	if a.metrics != nil {
		handler = a.metrics.Instrument(route, handler)
	}
	mux.Handle(pattern, handler)
}

// logged tags each request with an ID and logs its completion.
func (a *API) logged(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		next.ServeHTTP(w, r)
		a.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"route":      route,
			"method":     r.Method,
			"duration":   time.Since(start).String(),
		}).Debug("http request")
	})
}
