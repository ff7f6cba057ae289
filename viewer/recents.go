package viewer

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/greut/iiif-viewer/manifest"
)

// Recent is one remembered manifest shown on the homepage.
type Recent struct {
	URL      string    `json:"url"`
	Label    string    `json:"label"`
	Provider string    `json:"provider,omitempty"`
	Canvases int       `json:"canvases"`
	Visits   int       `json:"visits"`
	LastSeen time.Time `json:"lastSeen"`
}

// RecentStore remembers which manifests were opened, backed by sqlite.
// An opened manifest is keyed by its fetch URL; reopening bumps the
// visit count instead of adding a row.
type RecentStore struct {
	db *sql.DB
}

const recentsSchema = `
CREATE TABLE IF NOT EXISTS recents (
	url       TEXT PRIMARY KEY,
	label     TEXT NOT NULL DEFAULT '',
	provider  TEXT NOT NULL DEFAULT '',
	canvases  INTEGER NOT NULL DEFAULT 0,
	visits    INTEGER NOT NULL DEFAULT 0,
	last_seen TIMESTAMP NOT NULL
);`

// OpenRecentStore opens, and first creates, the database at path.
// ":memory:" gives an ephemeral store.
func OpenRecentStore(path string) (*RecentStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// a second pooled connection would see a fresh empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(recentsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create recents table: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &RecentStore{db: db}, nil
}

// Upsert records a successful open of the manifest at url.
func (s *RecentStore) Upsert(ctx context.Context, url string, m *manifest.Manifest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recents (url, label, provider, canvases, visits, last_seen)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(url) DO UPDATE SET
			label = excluded.label,
			provider = excluded.provider,
			canvases = excluded.canvases,
			visits = visits + 1,
			last_seen = excluded.last_seen
	`, url, m.Label, m.Provider, len(m.Canvases), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert recent: %w", err)
	}
	return nil
}

// List returns the most recently opened manifests, newest first.
func (s *RecentStore) List(ctx context.Context, limit int) ([]Recent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT url, label, provider, canvases, visits, last_seen
		FROM recents
		ORDER BY last_seen DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recents: %w", err)
	}
	defer rows.Close()

	out := make([]Recent, 0, limit)
	for rows.Next() {
		var rec Recent
		if err := rows.Scan(&rec.URL, &rec.Label, &rec.Provider, &rec.Canvases, &rec.Visits, &rec.LastSeen); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows recents: %w", err)
	}

	return out, nil
}

// Close releases the database handle.
func (s *RecentStore) Close() error {
	return s.db.Close()
}
