// Package scores persists per-player high scores in SQLite.
package scores

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Entry struct {
	PlayerID   string
	Seed       string
	Score      int64
	RecordedAt string
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS high_scores (
	player_id   TEXT NOT NULL,
	seed        TEXT NOT NULL,
	score       INTEGER NOT NULL,
	recorded_at TEXT NOT NULL,
	PRIMARY KEY (player_id, seed)
);
CREATE INDEX IF NOT EXISTS idx_high_scores_seed_score ON high_scores (seed, score DESC);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// RecordScore upserts a player's score for a seed, but only when it beats
// the stored best. Lower or equal scores leave the row untouched.
func (s *Store) RecordScore(ctx context.Context, playerID, seed string, score int64) error {
	const q = `
INSERT INTO high_scores (player_id, seed, score, recorded_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (player_id, seed) DO UPDATE SET
	score = excluded.score,
	recorded_at = excluded.recorded_at
WHERE excluded.score > high_scores.score;
`
	_, err := s.db.ExecContext(ctx, q, playerID, seed, score, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

// Best returns a player's best score for a seed. ok is false when the
// player has no recorded score there.
func (s *Store) Best(ctx context.Context, playerID, seed string) (score int64, ok bool, err error) {
	const q = `SELECT score FROM high_scores WHERE player_id = ? AND seed = ?;`
	err = s.db.QueryRowContext(ctx, q, playerID, seed).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("best score: %w", err)
	}
	return score, true, nil
}

// Top returns the leaderboard for a seed, best first.
func (s *Store) Top(ctx context.Context, seed string, limit int) ([]Entry, error) {
	const q = `
SELECT player_id, seed, score, recorded_at
FROM high_scores WHERE seed = ?
ORDER BY score DESC, recorded_at ASC
LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, q, seed, limit)
	if err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.PlayerID, &e.Seed, &e.Score, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
