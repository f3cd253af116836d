package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"sat-daily-quiz/internal/domain"
	"sat-daily-quiz/internal/ingest"
)

// QuestionLoader reads the normalized question-bank JSON export.
type QuestionLoader struct {
	path string
}

func NewQuestionLoader(path string) *QuestionLoader {
	return &QuestionLoader{path: path}
}

type rawChoice struct {
	Key     string `json:"key"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// rawQuestion mirrors one record of the export. Only plaintext fields are read.
type rawQuestion struct {
	ID             string      `json:"id"`
	ExternalID     string      `json:"external_id"`
	Subject        string      `json:"subject"`
	Program        string      `json:"program"`
	Domain         string      `json:"domain"`
	DomainDesc     string      `json:"domain_desc"`
	SkillCode      string      `json:"skill_cd"`
	SkillDesc      string      `json:"skill_desc"`
	Difficulty     string      `json:"difficulty"`
	Type           string      `json:"type"`
	Stimulus       string      `json:"stimulus"`
	Stem           string      `json:"stem"`
	Choices        []rawChoice `json:"choices"`
	CorrectLetters []string    `json:"correct_letters"`
	CorrectAnswers []string    `json:"correct_answers"`
	Rationale      string      `json:"rationale"`
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return Decode(data)
}

// Decode converts an export document into questions.
func Decode(data []byte) ([]domain.Question, error) {
	var raws []rawQuestion
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	out := make([]domain.Question, 0, len(raws))
	for _, r := range raws {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (r rawQuestion) toDomain() domain.Question {
	id := r.ID
	if id == "" {
		id = r.ExternalID
	}
	skill := r.SkillDesc
	if skill == "" {
		skill = r.SkillCode
	}

	choices := make([]domain.Choice, 0, len(r.Choices))
	var fromChoices []string
	for _, c := range r.Choices {
		choices = append(choices, domain.Choice{Key: c.Key, Text: c.Text})
		if c.Correct {
			fromChoices = append(fromChoices, c.Key)
		}
	}

	correct := r.CorrectLetters
	if len(correct) == 0 {
		correct = fromChoices
	}
	if len(correct) == 0 {
		correct = r.CorrectAnswers
	}

	subject := r.Subject
	if subject == "" {
		subject = r.Program
	}

	q := domain.Question{
		ID:             strings.TrimSpace(id),
		Subject:        domain.Subject(subject),
		Domain:         r.Domain,
		Skill:          skill,
		Difficulty:     domain.Difficulty(r.Difficulty),
		Type:           domain.QuestionType(r.Type),
		Stimulus:       r.Stimulus,
		Stem:           r.Stem,
		Choices:        choices,
		CorrectAnswers: correct,
		Rationale:      r.Rationale,
	}
	return ingest.Normalize(q, r.DomainDesc)
}
