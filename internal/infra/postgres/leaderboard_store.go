package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"sat-daily-quiz/internal/domain"
)

// leaderboardRow maps the leaderboard_entries table.
type leaderboardRow struct {
	bun.BaseModel `bun:"table:leaderboard_entries"`

	QuizDate       string    `bun:"quiz_date,pk"`
	NameKey        string    `bun:"name_key,pk"`
	DisplayName    string    `bun:"display_name,notnull"`
	Grade          string    `bun:"grade,notnull"`
	District       string    `bun:"district,notnull"`
	Score          int       `bun:"score,notnull"`
	Percent        int       `bun:"percent,notnull"`
	ElapsedSeconds int       `bun:"elapsed_seconds,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

func (r leaderboardRow) entry() domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		DisplayName:    r.DisplayName,
		Grade:          domain.Grade(r.Grade),
		District:       r.District,
		Score:          r.Score,
		Percent:        r.Percent,
		ElapsedSeconds: r.ElapsedSeconds,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

// LeaderboardStore is a durable app.LeaderboardStore on Postgres via bun.
type LeaderboardStore struct {
	db *bun.DB
}

func NewLeaderboardStore(db *bun.DB) *LeaderboardStore {
	return &LeaderboardStore{db: db}
}

func (s *LeaderboardStore) Get(ctx context.Context, date, nameKey string) (domain.LeaderboardEntry, bool, error) {
	var row leaderboardRow
	err := s.db.NewSelect().
		Model(&row).
		Where("quiz_date = ?", date).
		Where("name_key = ?", nameKey).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LeaderboardEntry{}, false, nil
	}
	if err != nil {
		return domain.LeaderboardEntry{}, false, err
	}
	return row.entry(), true, nil
}

func (s *LeaderboardStore) Upsert(ctx context.Context, date, nameKey string, entry domain.LeaderboardEntry) error {
	row := &leaderboardRow{
		QuizDate:       date,
		NameKey:        nameKey,
		DisplayName:    entry.DisplayName,
		Grade:          string(entry.Grade),
		District:       entry.District,
		Score:          entry.Score,
		Percent:        entry.Percent,
		ElapsedSeconds: entry.ElapsedSeconds,
		CreatedAt:      entry.CreatedAt,
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (quiz_date, name_key) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("grade = EXCLUDED.grade").
		Set("district = EXCLUDED.district").
		Set("score = EXCLUDED.score").
		Set("percent = EXCLUDED.percent").
		Set("elapsed_seconds = EXCLUDED.elapsed_seconds").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	return err
}

func (s *LeaderboardStore) List(ctx context.Context, date string) ([]domain.LeaderboardEntry, error) {
	var rows []leaderboardRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("quiz_date = ?", date).
		Order("score DESC", "elapsed_seconds ASC", "created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

func (s *LeaderboardStore) Count(ctx context.Context, date string) (int, error) {
	return s.db.NewSelect().
		Model((*leaderboardRow)(nil)).
		Where("quiz_date = ?", date).
		Count(ctx)
}
