// Package ingest normalises raw question-bank records at the loading boundary.
// Loaders call Normalize so downstream code always sees explicit subjects,
// difficulties and types.
package ingest

import (
	"regexp"
	"strings"

	"sat-daily-quiz/internal/domain"
)

var domainSubjects = map[string]domain.Subject{
	// Reading and Writing
	"INI": domain.SubjectEnglish, // Information and Ideas
	"CAS": domain.SubjectEnglish, // Craft and Structure
	"EOI": domain.SubjectEnglish, // Expression of Ideas
	"SEC": domain.SubjectEnglish, // Standard English Conventions
	// Math
	"H": domain.SubjectMath, // Algebra
	"P": domain.SubjectMath, // Advanced Math
	"Q": domain.SubjectMath, // Problem-Solving and Data Analysis
	"S": domain.SubjectMath, // Geometry and Trigonometry
}

var (
	mathKeywords    = regexp.MustCompile(`(?i)\b(algebra|equation|linear|quadratic|function|polynomial|geometry|trigonometr\w*|triangle|circle|percent|probability|ratio|slope|exponent\w*|variable|data analysis|statistic\w*)\b`)
	englishKeywords = regexp.MustCompile(`(?i)\b(reading|writing|grammar|punctuation|transition|rhetoric\w*|passage|author|sentence|boundar\w*|vocabulary|words in context|central idea|inference|conventions)\b`)
)

// InferSubject guesses the subject from a domain code or, failing that, from
// keywords in the domain and skill descriptions. ok is false when nothing matched.
func InferSubject(domainCode, domainDesc, skill string) (domain.Subject, bool) {
	if s, ok := domainSubjects[strings.ToUpper(strings.TrimSpace(domainCode))]; ok {
		return s, true
	}
	text := domainCode + " " + domainDesc + " " + skill
	mathHits := len(mathKeywords.FindAllString(text, -1))
	englishHits := len(englishKeywords.FindAllString(text, -1))
	switch {
	case mathHits > englishHits:
		return domain.SubjectMath, true
	case englishHits > mathHits:
		return domain.SubjectEnglish, true
	default:
		return "", false
	}
}

// ParseSubject accepts the subject spellings used by question-bank exports.
func ParseSubject(raw string) (domain.Subject, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "english", "reading and writing", "reading & writing", "r&w", "rw":
		return domain.SubjectEnglish, true
	case "math", "mathematics", "m":
		return domain.SubjectMath, true
	}
	return "", false
}

// ParseDifficulty accepts E/M/H codes and full names.
func ParseDifficulty(raw string) (domain.Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "e", "easy":
		return domain.DifficultyEasy, true
	case "m", "medium":
		return domain.DifficultyMedium, true
	case "h", "hard":
		return domain.DifficultyHard, true
	}
	return "", false
}

// ParseType maps export type codes; questions with choices default to multiple choice.
func ParseType(raw string, hasChoices bool) domain.QuestionType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mcq", "multiplechoice", "multiple_choice", "multiple-choice":
		return domain.TypeMultipleChoice
	case "spr", "freeresponse", "free_response", "free-response", "grid-in":
		return domain.TypeFreeResponse
	}
	if hasChoices {
		return domain.TypeMultipleChoice
	}
	return domain.TypeFreeResponse
}

// Normalize fills in a missing subject via InferSubject and canonicalises
// difficulty and type spellings. Unknown values are left as-is so the selector
// can filter them out.
func Normalize(q domain.Question, domainDesc string) domain.Question {
	if !q.Subject.Valid() {
		if s, ok := ParseSubject(string(q.Subject)); ok {
			q.Subject = s
		} else if s, ok := InferSubject(q.Domain, domainDesc, q.Skill); ok {
			q.Subject = s
		}
	}
	if d, ok := ParseDifficulty(string(q.Difficulty)); ok {
		q.Difficulty = d
	}
	q.Type = ParseType(string(q.Type), len(q.Choices) > 0)
	return q
}
