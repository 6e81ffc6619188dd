// Package session persists the current user between runs in a local
// SQLite file, so a CLI can log in or out while the server is running.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobmate/jobsync/internal/db"
	"jobmate/jobsync/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS session (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	user_id    TEXT NOT NULL,
	user_name  TEXT NOT NULL DEFAULT '',
	user_photo TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
)`

// Store holds at most one user: the one currently logged in.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the session file at path.
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := db.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return &Store{db: conn, path: path}, nil
}

// Path returns the session file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Current returns the logged-in user, or nil when nobody is.
func (s *Store) Current(ctx context.Context) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, user_name, user_photo FROM session WHERE id = 1`,
	).Scan(&u.ID, &u.Name, &u.Photo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	return &u, nil
}

// Save logs u in, replacing any previous user.
func (s *Store) Save(ctx context.Context, u model.User) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session (id, user_id, user_name, user_photo, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   user_id = excluded.user_id,
		   user_name = excluded.user_name,
		   user_photo = excluded.user_photo,
		   updated_at = excluded.updated_at`,
		u.ID, u.Name, u.Photo, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear logs out. Clearing an empty session is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
