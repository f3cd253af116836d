package app

import (
	"context"
	"fmt"

	"sat-daily-quiz/internal/domain"
)

// MaxPracticeQuestions caps a practice listing.
const MaxPracticeQuestions = 50

// PracticeQuery filters a practice listing.
type PracticeQuery struct {
	Subject    domain.Subject
	Difficulty domain.Difficulty
	Limit      int
}

// PracticeService lists pool questions for free practice.
type PracticeService struct {
	source QuestionSource
}

func NewPracticeService(source QuestionSource) *PracticeService {
	return &PracticeService{source: source}
}

// List returns matching questions in pool order. Answer keys are kept; callers
// decide what to reveal.
func (s *PracticeService) List(ctx context.Context, q PracticeQuery) ([]domain.Question, error) {
	if q.Subject != "" && !q.Subject.Valid() {
		return nil, fmt.Errorf("%w: unknown subject %q", domain.ErrInvalidQuery, q.Subject)
	}
	if q.Difficulty != "" && q.Difficulty.Rank() < 0 {
		return nil, fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidQuery, q.Difficulty)
	}
	limit := q.Limit
	if limit <= 0 || limit > MaxPracticeQuestions {
		limit = MaxPracticeQuestions
	}

	filter := domain.SubjectFilter{}
	if q.Subject != "" {
		filter.Subjects = []domain.Subject{q.Subject}
	}
	pool, err := s.source.ListQuestions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPoolUnavailable, err)
	}

	out := make([]domain.Question, 0, limit)
	for _, question := range pool {
		if q.Difficulty != "" && question.Difficulty != q.Difficulty {
			continue
		}
		out = append(out, question)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
