package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"sat-daily-quiz/internal/domain"
)

const maxSubmissionBytes = 4 << 10

type submitResponse struct {
	Status domain.UpsertOutcome `json:"status"`
}

func (a *API) postLeaderboard(w http.ResponseWriter, r *http.Request) {
	var sub domain.LeaderboardSubmission
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSubmissionBytes))
	if err := dec.Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "invalid JSON body",
			Fields: map[string]string{"body": "must be a JSON object with leaderboard fields"},
		})
		return
	}

	outcome, err := a.leaderboard.Submit(r.Context(), clientIdentity(r), sub)
	if err != nil {
		a.log.WithError(err).Debug("leaderboard submission rejected")
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if outcome == domain.OutcomeInserted {
		status = http.StatusCreated
	}
	writeJSON(w, status, submitResponse{Status: outcome})
}

func (a *API) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lb, err := a.leaderboard.Query(r.Context(), q.Get("date"), q.Get("grade"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(lb.Total))
	w.Header().Set("Cache-Control", "public, max-age=15, s-maxage=30")
	writeJSON(w, http.StatusOK, lb)
}
