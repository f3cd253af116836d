package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"sat-daily-quiz/internal/domain"
)

type errorResponse struct {
	Error             string            `json:"error"`
	Fields            map[string]string `json:"fields,omitempty"`
	RetryAfterSeconds int               `json:"retryAfterSeconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeServiceError maps core errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	var rerr *domain.RateLimitError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.As(err, &rerr):
		secs := rerr.RetryAfterSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many submissions", RetryAfterSeconds: secs})
	case errors.Is(err, domain.ErrCapacityExceeded):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "leaderboard is full for this date, try tomorrow"})
	case errors.Is(err, domain.ErrInvalidDate):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid date"})
	case errors.Is(err, domain.ErrInvalidGrade):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid grade"})
	case errors.Is(err, domain.ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrQuestionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "question not found"})
	case errors.Is(err, domain.ErrInsufficientPool):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "today's quiz is not available, try again later"})
	case errors.Is(err, domain.ErrPoolUnavailable):
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "question bank unavailable, retry", RetryAfterSeconds: 30})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
	}
}

// forwardedHeaders are consulted in order; the first populated one names the client.
var forwardedHeaders = []string{"X-Forwarded-For", "X-Real-IP", "CF-Connecting-IP"}

// clientIdentity derives the rate-limit identity of a request.
func clientIdentity(r *http.Request) string {
	for _, h := range forwardedHeaders {
		v := strings.TrimSpace(r.Header.Get(h))
		if v == "" {
			continue
		}
		// X-Forwarded-For lists proxies after the client.
		if first := strings.TrimSpace(strings.Split(v, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// sessionOwner reads the anonymous client key that owns a daily session.
func sessionOwner(r *http.Request) (string, bool) {
	owner := strings.TrimSpace(r.URL.Query().Get("client"))
	if owner == "" {
		owner = strings.TrimSpace(r.Header.Get("X-Client-ID"))
	}
	return owner, ownerPattern.MatchString(owner)
}

func parseIntParam(r *http.Request, key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return parsed, nil
}
