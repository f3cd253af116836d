package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sat-daily-quiz/internal/domain"
)

// SessionStore is the durable local session store: one row per (owner, key)
// in a single SQLite file.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(path string) (*SessionStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "sessions.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &SessionStore{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SessionStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			owner           TEXT NOT NULL,
			session_key     TEXT NOT NULL,
			state_json      TEXT NOT NULL,
			updated_at_unix INTEGER NOT NULL,
			PRIMARY KEY (owner, session_key)
		);`)
	return err
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

func (s *SessionStore) Load(ctx context.Context, owner, key string) (domain.SessionState, bool, error) {
	var raw string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT state_json FROM sessions WHERE owner = ? AND session_key = ?`,
		owner,
		key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionState{}, false, nil
	}
	if err != nil {
		return domain.SessionState{}, false, err
	}

	var state domain.SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return domain.SessionState{}, false, err
	}
	return state, true, nil
}

func (s *SessionStore) Save(ctx context.Context, owner, key string, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (owner, session_key, state_json, updated_at_unix) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner, session_key) DO UPDATE SET
			state_json = excluded.state_json,
			updated_at_unix = excluded.updated_at_unix`,
		owner,
		key,
		string(raw),
		time.Now().UTC().UnixNano(),
	)
	return err
}

// PurgeBefore deletes sessions not written since cutoff and returns how many were removed.
func (s *SessionStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at_unix < ?`, cutoff.UTC().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
