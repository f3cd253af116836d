package app

import (
	"fmt"
	"sort"
	"strings"

	"sat-daily-quiz/internal/domain"
)

const (
	// PerSubject is how many questions each subject contributes to the daily quiz.
	PerSubject = 5
	// DailyQuizSize is the total length of the daily quiz.
	DailyQuizSize = 2 * PerSubject
)

// SelectDaily builds the balanced daily quiz for dateSeed from pool.
// The result depends only on dateSeed and the pool contents and order.
func SelectDaily(dateSeed string, pool []domain.Question) (domain.DailyQuizSet, error) {
	english, err := selectSubject(dateSeed, domain.SubjectEnglish, pool)
	if err != nil {
		return domain.DailyQuizSet{}, err
	}
	math, err := selectSubject(dateSeed, domain.SubjectMath, pool)
	if err != nil {
		return domain.DailyQuizSet{}, err
	}

	questions := make([]domain.Question, 0, DailyQuizSize)
	for i := 0; i < PerSubject; i++ {
		questions = append(questions, english[i], math[i])
	}
	return domain.DailyQuizSet{Date: dateSeed, Questions: questions}, nil
}

func selectSubject(dateSeed string, subject domain.Subject, pool []domain.Question) ([]domain.Question, error) {
	candidates := progression(subject, pool)
	if len(candidates) < PerSubject {
		return nil, fmt.Errorf("%w: %s has %d candidates, need %d", domain.ErrInsufficientPool, subject, len(candidates), PerSubject)
	}

	rng := NewMulberry32(SeedFromString(dateSeed + "-" + strings.ToLower(string(subject))))
	picked := sample(rng, candidates, PerSubject)

	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].Difficulty.Rank() < picked[j].Difficulty.Rank()
	})
	return picked, nil
}

// progression returns the usable questions of subject ordered Easy, Medium, Hard,
// keeping pool order inside each bucket.
func progression(subject domain.Subject, pool []domain.Question) []domain.Question {
	var buckets [3][]domain.Question
	for _, q := range pool {
		if q.ID == "" || q.Subject != subject {
			continue
		}
		rank := q.Difficulty.Rank()
		if rank < 0 {
			continue
		}
		buckets[rank] = append(buckets[rank], q)
	}
	out := make([]domain.Question, 0, len(buckets[0])+len(buckets[1])+len(buckets[2]))
	for _, b := range buckets {
		out = append(out, b...)
	}
	return out
}

// sample runs a partial Fisher-Yates over a copy of items and returns the first k.
func sample(rng *Mulberry32, items []domain.Question, k int) []domain.Question {
	shuffled := make([]domain.Question, len(items))
	copy(shuffled, items)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:k]
}
