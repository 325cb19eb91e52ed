// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists session snapshots in SQLite so a session survives
// a process restart.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-podcast/internal/pipeline"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no session has the requested id.
var ErrNotFound = errors.New("session not found")

// Store is the SQLite session table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Summary is one row of the session listing.
type Summary struct {
	ID        string         `json:"id"`
	Stage     pipeline.Stage `json:"stage"`
	Revision  int64          `json:"revision"`
	Query     string         `json:"query,omitempty"`
	Title     string         `json:"title,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Open opens or creates the database at path and its schema. The path
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			stage TEXT NOT NULL,
			revision INTEGER NOT NULL,
			query TEXT,
			title TEXT,
			record TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save writes snap, replacing the stored record unless that one carries a
// higher revision.
func (s *Store) Save(ctx context.Context, snap pipeline.Snapshot) error {
	record, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", snap.SessionID, err)
	}
	var title string
	if p := snap.Context.SelectedPaper; p != nil {
		title = p.Title
	}
	now := s.now().UTC().Format(timeLayout)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, version, stage, revision, query, title, record, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			stage = excluded.stage,
			revision = excluded.revision,
			query = excluded.query,
			title = excluded.title,
			record = excluded.record,
			updated_at = excluded.updated_at
		WHERE excluded.revision >= sessions.revision`,
		snap.SessionID, snap.Version, string(snap.State.Stage), snap.State.Revision,
		snap.Context.Query, title, string(record), now, now)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", snap.SessionID, err)
	}
	return nil
}

// Load returns the stored snapshot of id.
func (s *Store) Load(ctx context.Context, id string) (pipeline.Snapshot, error) {
	var (
		version int
		record  string
	)
	err := s.db.QueryRowContext(ctx, `SELECT version, record FROM sessions WHERE id = ?`, id).Scan(&version, &record)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("loading session %s: %w", id, err)
	}
	if version != pipeline.SnapshotVersion {
		return pipeline.Snapshot{}, fmt.Errorf("session %s has record version %d (want %d)", id, version, pipeline.SnapshotVersion)
	}

	var snap pipeline.Snapshot
	if err := json.Unmarshal([]byte(record), &snap); err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return snap, nil
}

// List returns every session, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stage, revision, COALESCE(query, ''), COALESCE(title, ''), created_at, updated_at
		FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum              Summary
			stage            string
			created, updated string
		)
		if err := rows.Scan(&sum.ID, &stage, &sum.Revision, &sum.Query, &sum.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sum.Stage = pipeline.Stage(stage)
		sum.CreatedAt, _ = time.Parse(timeLayout, created)
		sum.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes the session id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
