// Package store provides the SQLite-backed snapshot store and the read-only
// configuration directory (playlists, groups, members and their relations),
// plus the in-memory seen-track store used to suppress re-add notifications.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS connection_credentials (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	client_id     TEXT NOT NULL,
	client_secret TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS playlists (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	connection_id       INTEGER NOT NULL REFERENCES connection_credentials(id),
	spotify_playlist_id TEXT NOT NULL,
	last_state_json     TEXT
);

CREATE TABLE IF NOT EXISTS groups (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS members (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	spotify_user_id TEXT,
	email           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id  INTEGER NOT NULL REFERENCES groups(id),
	member_id INTEGER NOT NULL REFERENCES members(id),
	PRIMARY KEY (group_id, member_id)
);

CREATE TABLE IF NOT EXISTS playlist_groups (
	playlist_id INTEGER NOT NULL REFERENCES playlists(id),
	group_id    INTEGER NOT NULL REFERENCES groups(id),
	PRIMARY KEY (playlist_id, group_id)
);

CREATE TABLE IF NOT EXISTS global_config (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	email_sender   TEXT,
	email_host     TEXT,
	email_port     INTEGER,
	email_password TEXT
);
`

// Store wraps the SQLite database holding both the configuration graph and
// the per-playlist snapshots.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (and if necessary bootstraps) the database at path. Path may be
// ":memory:" for tests.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("Database opened", zap.String("path", path))

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for operational tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}
