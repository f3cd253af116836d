package domain

import "time"

// Subject is the test section a question belongs to.
type Subject string

const (
	SubjectEnglish Subject = "English"
	SubjectMath    Subject = "Math"
)

// Valid reports whether s is a known subject.
func (s Subject) Valid() bool {
	return s == SubjectEnglish || s == SubjectMath
}

// Difficulty of a question as published by the question bank.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Rank orders difficulties Easy < Medium < Hard. Unknown values rank -1.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 0
	case DifficultyMedium:
		return 1
	case DifficultyHard:
		return 2
	default:
		return -1
	}
}

// QuestionType distinguishes choice questions from student-produced responses.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "MultipleChoice"
	TypeFreeResponse   QuestionType = "FreeResponse"
)

// Choice is one lettered option of a multiple-choice question.
type Choice struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is an immutable question-bank record.
type Question struct {
	ID             string       `json:"id"`
	Subject        Subject      `json:"subject"`
	Domain         string       `json:"domain"`
	Skill          string       `json:"skill"`
	Difficulty     Difficulty   `json:"difficulty"`
	Type           QuestionType `json:"type"`
	Stimulus       string       `json:"stimulus,omitempty"`
	Stem           string       `json:"stem"`
	Choices        []Choice     `json:"choices,omitempty"`
	CorrectAnswers []string     `json:"correctAnswers"`
	Rationale      string       `json:"rationale,omitempty"`
}

// Public strips the answer key and rationale.
func (q Question) Public() Question {
	q.CorrectAnswers = nil
	q.Rationale = ""
	return q
}

// SubjectFilter restricts a question listing; the zero value means all subjects.
type SubjectFilter struct {
	Subjects []Subject
}

// Matches reports whether s passes the filter.
func (f SubjectFilter) Matches(s Subject) bool {
	if len(f.Subjects) == 0 {
		return true
	}
	for _, want := range f.Subjects {
		if want == s {
			return true
		}
	}
	return false
}

// DailyQuizSet is the fixed question sequence served to everyone on Date.
type DailyQuizSet struct {
	Date      string     `json:"date"`
	Questions []Question `json:"questions"`
}

// Result is the outcome of a submitted session.
type Result struct {
	Score          int `json:"score"`
	Percent        int `json:"percent"`
	ElapsedSeconds int `json:"elapsedSeconds"`
}

// SessionState is the persisted form of one user's daily attempt.
type SessionState struct {
	ID               string            `json:"id"`
	Date             string            `json:"date"`
	Questions        []Question        `json:"questions"`
	Answers          map[string]string `json:"answers"`
	Flags            map[string]bool   `json:"flags"`
	StartedAt        time.Time         `json:"startedAt"`
	RemainingSeconds int               `json:"remainingSeconds"`
	Submitted        bool              `json:"submitted"`
	Result           *Result           `json:"result,omitempty"`
}

// Grade is the school grade reported with a leaderboard entry.
type Grade string

const (
	Grade9     Grade = "9"
	Grade10    Grade = "10"
	Grade11    Grade = "11"
	Grade12    Grade = "12"
	GradeOther Grade = "Other"
)

// Valid reports whether g is one of the accepted grades.
func (g Grade) Valid() bool {
	switch g {
	case Grade9, Grade10, Grade11, Grade12, GradeOther:
		return true
	}
	return false
}

// LeaderboardEntry is one user's best result for a date.
type LeaderboardEntry struct {
	DisplayName    string    `json:"displayName"`
	Grade          Grade     `json:"grade"`
	District       string    `json:"district,omitempty"`
	Score          int       `json:"score"`
	Percent        int       `json:"percent"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	CreatedAt      time.Time `json:"createdAt"`
}

// LeaderboardSubmission is an unvalidated entry as received from a client.
// Numeric fields stay *float64 so missing values and non-integers can be
// reported per field.
type LeaderboardSubmission struct {
	DisplayName    string   `json:"displayName"`
	Grade          string   `json:"grade"`
	District       string   `json:"district"`
	Score          *float64 `json:"score"`
	Percent        *float64 `json:"percent"`
	ElapsedSeconds *float64 `json:"elapsedSeconds"`
	Date           string   `json:"date"`
	CreatedAt      string   `json:"createdAt,omitempty"`
}

// Leaderboard is a ranked page of entries for a date.
type Leaderboard struct {
	Date      string             `json:"date"`
	Grade     Grade              `json:"grade,omitempty"`
	Total     int                `json:"total"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// UpsertOutcome describes what a leaderboard submission did to the stored entry.
type UpsertOutcome string

const (
	OutcomeInserted UpsertOutcome = "inserted"
	OutcomeReplaced UpsertOutcome = "replaced"
	OutcomeIgnored  UpsertOutcome = "ignored"
)
