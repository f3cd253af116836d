package app

import "sat-daily-quiz/internal/domain"

// Observer receives domain events for metrics. Implementations must be safe
// for concurrent use.
type Observer interface {
	SessionSubmitted(auto bool)
	LeaderboardSubmitted(outcome domain.UpsertOutcome)
	LeaderboardRejected(reason string)
}

type nopObserver struct{}

func (nopObserver) SessionSubmitted(bool)                     {}
func (nopObserver) LeaderboardSubmitted(domain.UpsertOutcome) {}
func (nopObserver) LeaderboardRejected(string)                {}
