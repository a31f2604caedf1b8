// Package cache persists the most recent successful fetch snapshot for
// instant redisplay and as a fallback after a failed run.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"foloexport/internal/models"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// A single logical slot: save always overwrites the previous snapshot.
const snapshotKey = "latest"

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	key        TEXT PRIMARY KEY,
	articles   TEXT NOT NULL,
	fetch_time INTEGER NOT NULL,
	count      INTEGER NOT NULL
);`

func init() {
	// The modernc driver registers as "sqlite", which sqlx does not know
	// a placeholder style for out of the box.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store is a SQLite-backed snapshot store.
type Store struct {
	db *sqlx.DB
}

// Open opens or creates the cache database at the given path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to set wal mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to migrate cache db: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save overwrites the stored snapshot unconditionally.
func (s *Store) Save(ctx context.Context, snapshot models.Snapshot) error {
	articles, err := json.Marshal(snapshot.Articles)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot articles: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (key, articles, fetch_time, count) VALUES (?, ?, ?, ?)`,
		snapshotKey, string(articles), snapshot.FetchTime, snapshot.Count,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// Load returns the stored snapshot. A missing snapshot is reported via
// the second return value, never as an error.
func (s *Store) Load(ctx context.Context) (models.Snapshot, bool, error) {
	var row dbSnapshot

	err := s.db.GetContext(ctx, &row,
		`SELECT articles, fetch_time, count FROM snapshots WHERE key = ?`, snapshotKey)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, false, nil
	}

	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var articles []models.Article
	if err := json.Unmarshal([]byte(row.Articles), &articles); err != nil {
		return models.Snapshot{}, false, fmt.Errorf("failed to decode snapshot articles: %w", err)
	}

	return models.Snapshot{
		Articles:  articles,
		FetchTime: row.FetchTime,
		Count:     row.Count,
	}, true, nil
}

// Clear removes the stored snapshot. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, snapshotKey); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	return nil
}

// NewSnapshot builds a snapshot for the given articles at the given time.
func NewSnapshot(articles []models.Article, now time.Time) models.Snapshot {
	return models.Snapshot{
		Articles:  articles,
		FetchTime: now.UnixMilli(),
		Count:     len(articles),
	}
}

// Internal row model mapping snapshot columns.
type dbSnapshot struct {
	Articles  string `db:"articles"`
	FetchTime int64  `db:"fetch_time"`
	Count     int    `db:"count"`
}
