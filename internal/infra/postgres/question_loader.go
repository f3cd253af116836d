package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"sat-daily-quiz/internal/domain"
	"sat-daily-quiz/internal/ingest"
)

// QuestionLoader loads question JSONB documents from Postgres in insertion order.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM questions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		out = append(out, ingest.Normalize(q, ""))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return out, nil
}

// ImportQuestions upserts questions in one batch, keeping first-seen positions.
func ImportQuestions(ctx context.Context, pool *pgxpool.Pool, questions []domain.Question) (int, error) {
	batch := &pgx.Batch{}
	for _, q := range questions {
		if q.ID == "" {
			continue
		}
		data, err := json.Marshal(q)
		if err != nil {
			return 0, fmt.Errorf("marshal question %s: %w", q.ID, err)
		}
		batch.Queue(
			`INSERT INTO questions (id, subject, difficulty, data) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET subject = EXCLUDED.subject, difficulty = EXCLUDED.difficulty, data = EXCLUDED.data`,
			q.ID, string(q.Subject), string(q.Difficulty), string(data),
		)
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("import question: %w", err)
		}
	}
	return batch.Len(), nil
}
