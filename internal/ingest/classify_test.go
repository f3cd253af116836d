package ingest

import (
	"testing"

	"sat-daily-quiz/internal/domain"
)

func TestInferSubject(t *testing.T) {
	cases := []struct {
		code, desc, skill string
		want              domain.Subject
		ok                bool
	}{
		{code: "SEC", want: domain.SubjectEnglish, ok: true},
		{code: " q ", want: domain.SubjectMath, ok: true},
		{desc: "Geometry and Trigonometry", skill: "Right triangle", want: domain.SubjectMath, ok: true},
		{desc: "Craft and Structure", skill: "Words in Context", want: domain.SubjectEnglish, ok: true},
		{desc: "Miscellaneous"},
	}
	for _, tc := range cases {
		got, ok := InferSubject(tc.code, tc.desc, tc.skill)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("InferSubject(%q, %q, %q) = %q, %v; want %q, %v", tc.code, tc.desc, tc.skill, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseHelpers(t *testing.T) {
	if d, ok := ParseDifficulty("m"); !ok || d != domain.DifficultyMedium {
		t.Fatalf("ParseDifficulty(m) = %q, %v", d, ok)
	}
	if _, ok := ParseDifficulty("extreme"); ok {
		t.Fatalf("unknown difficulty accepted")
	}
	if s, ok := ParseSubject("Reading & Writing"); !ok || s != domain.SubjectEnglish {
		t.Fatalf("ParseSubject = %q, %v", s, ok)
	}
	if got := ParseType("", true); got != domain.TypeMultipleChoice {
		t.Fatalf("choices should imply multiple choice, got %q", got)
	}
	if got := ParseType("grid-in", false); got != domain.TypeFreeResponse {
		t.Fatalf("grid-in should be free response, got %q", got)
	}
}

func TestNormalize(t *testing.T) {
	q := Normalize(domain.Question{ID: "1", Subject: "math", Difficulty: "H"}, "")
	if q.Subject != domain.SubjectMath || q.Difficulty != domain.DifficultyHard || q.Type != domain.TypeFreeResponse {
		t.Fatalf("unexpected normalized question %+v", q)
	}

	q = Normalize(domain.Question{ID: "2", Domain: "INI", Difficulty: "Unknown"}, "")
	if q.Subject != domain.SubjectEnglish {
		t.Fatalf("subject not inferred from domain code: %q", q.Subject)
	}
	if q.Difficulty != "Unknown" {
		t.Fatalf("unknown difficulty should be left as-is, got %q", q.Difficulty)
	}
}
