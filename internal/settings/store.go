// Package settings persists per-project preferences and per-note pin flags
// in SQLite. This is the durable state behind project construction: sort
// overrides and visibility are read when a project is registered, pins when
// its notes are loaded.
package settings

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/avhall/notarius/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	key             TEXT PRIMARY KEY,
	sort_key        TEXT NOT NULL DEFAULT '',
	sort_desc       INTEGER NOT NULL DEFAULT 0,
	show_in_common  INTEGER NOT NULL DEFAULT 1,
	show_in_sidebar INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS pins (
	key TEXT PRIMARY KEY
);
`

// Project holds the persisted preferences for one project.
type Project struct {
	SortKey       models.SortKey
	SortOrder     models.SortOrder
	ShowInCommon  bool
	ShowInSidebar bool
}

// DefaultProject is what an unknown project gets.
func DefaultProject() Project {
	return Project{ShowInCommon: true, ShowInSidebar: true}
}

// Store wraps the settings database. When container is non-empty, paths
// under it are keyed relative to it so a synchronized deployment can share
// one settings file across machines.
type Store struct {
	conn      *sql.DB
	container string
}

// Open opens (or creates) the settings database and applies the schema.
func Open(dsn, container string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("settings: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("settings: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("settings: apply schema: %w", err)
	}
	return &Store{conn: conn, container: container}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// key converts an absolute path to its storage key.
func (s *Store) key(path string) string {
	if s.container != "" {
		if rel, err := filepath.Rel(s.container, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return path
}

// Project returns the persisted settings for the project at path, or the
// defaults when nothing is stored.
func (s *Store) Project(path string) (Project, error) {
	p := DefaultProject()
	var sortKey string
	var sortDesc, common, sidebar int
	err := s.conn.QueryRow(
		`SELECT sort_key, sort_desc, show_in_common, show_in_sidebar FROM projects WHERE key = ?`,
		s.key(path),
	).Scan(&sortKey, &sortDesc, &common, &sidebar)
	if err == sql.ErrNoRows {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("settings: project: %w", err)
	}
	p.SortKey = models.ParseSortKey(sortKey)
	if sortDesc != 0 {
		p.SortOrder = models.SortDescending
	}
	p.ShowInCommon = common != 0
	p.ShowInSidebar = sidebar != 0
	return p, nil
}

// SaveProject upserts the settings for the project at path.
func (s *Store) SaveProject(path string, p Project) error {
	sortDesc := 0
	if p.SortOrder == models.SortDescending {
		sortDesc = 1
	}
	_, err := s.conn.Exec(`
		INSERT INTO projects (key, sort_key, sort_desc, show_in_common, show_in_sidebar)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			sort_key        = excluded.sort_key,
			sort_desc       = excluded.sort_desc,
			show_in_common  = excluded.show_in_common,
			show_in_sidebar = excluded.show_in_sidebar
	`, s.key(path), p.SortKey.String(), sortDesc, boolInt(p.ShowInCommon), boolInt(p.ShowInSidebar))
	if err != nil {
		return fmt.Errorf("settings: save project: %w", err)
	}
	return nil
}

// IsPinned reports whether the note at path carries a persisted pin.
func (s *Store) IsPinned(path string) bool {
	var one int
	err := s.conn.QueryRow(`SELECT 1 FROM pins WHERE key = ?`, s.key(path)).Scan(&one)
	return err == nil
}

// SetPinned stores or clears the pin flag for the note at path.
func (s *Store) SetPinned(path string, pinned bool) error {
	var err error
	if pinned {
		_, err = s.conn.Exec(`INSERT OR IGNORE INTO pins (key) VALUES (?)`, s.key(path))
	} else {
		_, err = s.conn.Exec(`DELETE FROM pins WHERE key = ?`, s.key(path))
	}
	if err != nil {
		return fmt.Errorf("settings: set pinned: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
