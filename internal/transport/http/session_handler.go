package http

import (
	"encoding/json"
	"io"
	"net/http"

	"sat-daily-quiz/internal/app"
	"sat-daily-quiz/internal/domain"
)

const maxSessionBodyBytes = 8 << 10

type answerRequest struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

type flagRequest struct {
	QuestionID string `json:"questionId"`
}

type flagResponse struct {
	QuestionID string `json:"questionId"`
	Flagged    bool   `json:"flagged"`
}

func (a *API) getDailyQuiz(w http.ResponseWriter, r *http.Request) {
	set, err := a.daily.Today(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	public := domain.DailyQuizSet{Date: set.Date, Questions: make([]domain.Question, len(set.Questions))}
	for i, q := range set.Questions {
		public.Questions[i] = q.Public()
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, public)
}

// openSession resolves the request owner and today's session, writing the
// error response itself when it fails.
func (a *API) openSession(w http.ResponseWriter, r *http.Request) (*app.QuizSession, bool) {
	owner, ok := sessionOwner(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "missing or invalid client id",
			Fields: map[string]string{"client": "1-64 letters, digits, '-' or '_'"},
		})
		return nil, false
	}
	session, err := a.sessions.Open(r.Context(), owner)
	if err != nil {
		a.log.WithError(err).WithField("owner", owner).Warn("open daily session failed")
		writeServiceError(w, err)
		return nil, false
	}
	return session, true
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	session, ok := a.openSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

func (a *API) postAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, ok := a.openSession(w, r)
	if !ok {
		return
	}
	if _, err := session.RecordAnswer(req.QuestionID, req.Value); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

func (a *API) postFlag(w http.ResponseWriter, r *http.Request) {
	var req flagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, ok := a.openSession(w, r)
	if !ok {
		return
	}
	flagged, err := session.ToggleFlag(req.QuestionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flagResponse{QuestionID: req.QuestionID, Flagged: flagged})
}

func (a *API) postSubmit(w http.ResponseWriter, r *http.Request) {
	session, ok := a.openSession(w, r)
	if !ok {
		return
	}
	session.Submit()
	writeJSON(w, http.StatusOK, session.View())
}

func (a *API) getPractice(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r, "limit", 10)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	q := r.URL.Query()
	questions, err := a.practice.List(r.Context(), app.PracticeQuery{
		Subject:    domain.Subject(q.Get("subject")),
		Difficulty: domain.Difficulty(q.Get("difficulty")),
		Limit:      limit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	for i := range questions {
		questions[i] = questions[i].Public()
	}
	writeJSON(w, http.StatusOK, questions)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSessionBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}
