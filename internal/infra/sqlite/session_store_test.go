package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sat-daily-quiz/internal/domain"
)

func TestSessionStoreRoundTripAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSessionStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	if _, found, err := store.Load(ctx, "c1", "daily-2024-03-15"); err != nil || found {
		t.Fatalf("expected miss, found=%v err=%v", found, err)
	}

	state := domain.SessionState{
		ID:               "s1",
		Date:             "2024-03-15",
		Questions:        []domain.Question{{ID: "q1", Subject: domain.SubjectMath, CorrectAnswers: []string{"4"}}},
		Answers:          map[string]string{"q1": "4"},
		Flags:            map[string]bool{"q1": true},
		StartedAt:        time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
		RemainingSeconds: 640,
	}
	if err := store.Save(ctx, "c1", "daily-2024-03-15", state); err != nil {
		t.Fatalf("save: %v", err)
	}
	state.RemainingSeconds = 600
	state.Submitted = true
	state.Result = &domain.Result{Score: 1, Percent: 100, ElapsedSeconds: 120}
	if err := store.Save(ctx, "c1", "daily-2024-03-15", state); err != nil {
		t.Fatalf("save again: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSessionStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, found, err := reopened.Load(ctx, "c1", "daily-2024-03-15")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if got.RemainingSeconds != 600 || !got.Submitted || got.Result == nil || got.Result.Score != 1 {
		t.Fatalf("unexpected state %+v", got)
	}
	if got.Answers["q1"] != "4" || !got.Flags["q1"] {
		t.Fatalf("answers or flags lost: %+v", got)
	}
}

func TestSessionStorePurgeBefore(t *testing.T) {
	store, err := NewSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, "c1", "daily-2024-03-14", domain.SessionState{ID: "old"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	n, err := store.PurgeBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("expected nothing purged, n=%d err=%v", n, err)
	}
	n, err = store.PurgeBefore(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("expected one purged, n=%d err=%v", n, err)
	}
	if _, found, _ := store.Load(ctx, "c1", "daily-2024-03-14"); found {
		t.Fatalf("purged session still present")
	}
}
