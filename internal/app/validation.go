package app

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sat-daily-quiz/internal/domain"
)

// Field limits for leaderboard submissions.
const (
	MaxScore       = DailyQuizSize
	MaxDistrictLen = 40
)

// DefaultDenylist is the built-in set of rejected display-name fragments.
var DefaultDenylist = []string{"admin", "moderator", "fuck", "shit", "bitch", "nazi"}

var (
	displayNamePattern = regexp.MustCompile(`^[A-Za-z0-9 ]+$`)
	datePattern        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	sanitizer          = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "`", "")
)

// Sanitize trims s and strips angle brackets and quote characters.
func Sanitize(s string) string {
	return strings.TrimSpace(sanitizer.Replace(strings.TrimSpace(s)))
}

// submissionRules is the validated shape of a sanitized submission.
type submissionRules struct {
	DisplayName    string   `json:"displayName" validate:"required,min=2,max=20,display_name,clean_name"`
	Grade          string   `json:"grade" validate:"required,oneof=9 10 11 12 Other"`
	District       string   `json:"district" validate:"max=40"`
	Score          *float64 `json:"score" validate:"required,integral,min=0,max=10"`
	Percent        *float64 `json:"percent" validate:"required,integral,min=0,max=100"`
	ElapsedSeconds *float64 `json:"elapsedSeconds" validate:"required,integral,min=0,max=720"`
	Date           string   `json:"date" validate:"required,quiz_date"`
}

// SubmissionValidator checks leaderboard submissions with go-playground/validator
// plus name and date rules.
type SubmissionValidator struct {
	validate *validator.Validate
	denylist []string
	now      func() time.Time
}

func NewSubmissionValidator(denylist []string, now func() time.Time) *SubmissionValidator {
	if denylist == nil {
		denylist = DefaultDenylist
	}
	lowered := make([]string, 0, len(denylist))
	for _, word := range denylist {
		if w := strings.ToLower(strings.TrimSpace(word)); w != "" {
			lowered = append(lowered, w)
		}
	}

	sv := &SubmissionValidator{validate: validator.New(), denylist: lowered, now: now}
	sv.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = sv.validate.RegisterValidation("display_name", func(fl validator.FieldLevel) bool {
		return displayNamePattern.MatchString(fl.Field().String())
	})
	_ = sv.validate.RegisterValidation("clean_name", sv.validateCleanName)
	_ = sv.validate.RegisterValidation("integral", func(fl validator.FieldLevel) bool {
		v := fl.Field().Float()
		return !math.IsNaN(v) && !math.IsInf(v, 0) && v == math.Trunc(v)
	})
	_ = sv.validate.RegisterValidation("quiz_date", func(fl validator.FieldLevel) bool {
		_, err := sv.ParseSubmissionDate(fl.Field().String())
		return err == nil
	})
	return sv
}

func (sv *SubmissionValidator) validateCleanName(fl validator.FieldLevel) bool {
	name := strings.ToLower(fl.Field().String())
	for _, word := range sv.denylist {
		if strings.Contains(name, word) {
			return false
		}
	}
	return true
}

// ParseSubmissionDate accepts YYYY-MM-DD dates between one year ago and tomorrow (UTC).
func (sv *SubmissionValidator) ParseSubmissionDate(raw string) (time.Time, error) {
	day, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	today, _ := time.Parse(DateLayout, DailySeed(sv.now()))
	if day.Before(today.AddDate(-1, 0, 0)) || day.After(today.AddDate(0, 0, 1)) {
		return time.Time{}, fmt.Errorf("date %s out of range", raw)
	}
	return day, nil
}

// ParseDate parses a strict YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	if !datePattern.MatchString(raw) {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD", raw)
	}
	return time.Parse(DateLayout, raw)
}

// Validate sanitizes sub and returns the entry it describes together with its date.
// Every failing field is reported in a *domain.ValidationError.
func (sv *SubmissionValidator) Validate(sub domain.LeaderboardSubmission) (domain.LeaderboardEntry, string, error) {
	rules := submissionRules{
		DisplayName:    Sanitize(sub.DisplayName),
		Grade:          strings.TrimSpace(sub.Grade),
		District:       Sanitize(sub.District),
		Score:          sub.Score,
		Percent:        sub.Percent,
		ElapsedSeconds: sub.ElapsedSeconds,
		Date:           strings.TrimSpace(sub.Date),
	}

	if err := sv.validate.Struct(rules); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return domain.LeaderboardEntry{}, "", err
		}
		out := &domain.ValidationError{}
		for _, fe := range verrs {
			out.Add(fe.Field(), fieldMessage(fe))
		}
		return domain.LeaderboardEntry{}, "", out
	}

	return domain.LeaderboardEntry{
		DisplayName:    rules.DisplayName,
		Grade:          domain.Grade(rules.Grade),
		District:       rules.District,
		Score:          int(*rules.Score),
		Percent:        int(*rules.Percent),
		ElapsedSeconds: int(*rules.ElapsedSeconds),
	}, rules.Date, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "display_name":
		return "may only contain letters, digits and spaces"
	case "clean_name":
		return "is not allowed"
	case "integral":
		return "must be an integer"
	case "quiz_date":
		return "must be a YYYY-MM-DD date between one year ago and tomorrow"
	default:
		return "is invalid"
	}
}
