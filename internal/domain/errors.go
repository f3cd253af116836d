package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInsufficientPool is returned when a subject cannot supply enough questions for the daily quiz.
	ErrInsufficientPool = errors.New("insufficient question pool")
	// ErrPoolUnavailable indicates the question bank could not be loaded at all.
	ErrPoolUnavailable = errors.New("question pool unavailable")
	// ErrQuestionNotFound indicates a question ID is not part of the session.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrCapacityExceeded is returned when the leaderboard for a date is full.
	ErrCapacityExceeded = errors.New("leaderboard capacity exceeded for date")
	// ErrInvalidQuery wraps malformed leaderboard or practice filters.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidDate is a malformed or missing date filter.
	ErrInvalidDate = fmt.Errorf("%w: invalid date", ErrInvalidQuery)
	// ErrInvalidGrade is an unknown grade filter.
	ErrInvalidGrade = fmt.Errorf("%w: invalid grade", ErrInvalidQuery)
	// ErrStorageUnavailable marks a failed session persistence; never surfaced to users.
	ErrStorageUnavailable = errors.New("session storage unavailable")
)

// ValidationError carries one message per failing submission field.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field, keeping the first one reported.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// RateLimitError is returned when a client exceeded its submission window.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds the wait up to whole seconds, minimum 1.
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
