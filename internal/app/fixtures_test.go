package app_test

import (
	"fmt"

	"sat-daily-quiz/internal/domain"
)

var difficulties = []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard}

// buildPool returns n questions per subject, cycling Easy, Medium, Hard.
// Every question's correct answer is "A".
func buildPool(english, math int) []domain.Question {
	var pool []domain.Question
	add := func(subject domain.Subject, prefix string, n int) {
		for i := 0; i < n; i++ {
			pool = append(pool, domain.Question{
				ID:             fmt.Sprintf("%s-%02d", prefix, i),
				Subject:        subject,
				Difficulty:     difficulties[i%len(difficulties)],
				Type:           domain.TypeMultipleChoice,
				Stem:           fmt.Sprintf("%s question %d", subject, i),
				Choices:        []domain.Choice{{Key: "A", Text: "yes"}, {Key: "B", Text: "no"}},
				CorrectAnswers: []string{"A"},
			})
		}
	}
	add(domain.SubjectEnglish, "en", english)
	add(domain.SubjectMath, "ma", math)
	return pool
}
