// Package store persists named tape snapshots in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/tape/vm"
)

// ErrSnapshotNotFound indicates the requested snapshot doesn't exist
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Entry describes a stored snapshot.
type Entry struct {
	Name    string
	Pointer uint16
	Size    int // encoded bytes
	SavedAt time.Time
}

// Store handles SQLite storage for snapshots
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the snapshot database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		name     TEXT PRIMARY KEY,
		pointer  INTEGER NOT NULL,
		data     BLOB NOT NULL,
		saved_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores st under name, replacing any existing snapshot.
func (s *Store) Save(ctx context.Context, name string, st *vm.State) error {
	if name == "" {
		return errors.New("snapshot name is required")
	}
	data, err := vm.MarshalSnapshot(st)
	if err != nil {
		return fmt.Errorf("encoding snapshot %q: %w", name, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (name, pointer, data, saved_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET pointer = excluded.pointer, data = excluded.data, saved_at = excluded.saved_at`,
		name, int(st.Pointer), data, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("saving snapshot %q: %w", name, err)
	}
	return nil
}

// Load restores the snapshot stored under name.
func (s *Store) Load(ctx context.Context, name string) (vm.State, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return vm.State{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return vm.State{}, fmt.Errorf("loading snapshot %q: %w", name, err)
	}
	return vm.UnmarshalSnapshot(data)
}

// List returns all snapshots ordered by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, pointer, length(data), saved_at FROM snapshots ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			pointer int
			savedAt int64
		)
		if err := rows.Scan(&e.Name, &pointer, &e.Size, &savedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		e.Pointer = uint16(pointer)
		e.SavedAt = time.Unix(0, savedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the snapshot stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting snapshot %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting snapshot %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	return nil
}
