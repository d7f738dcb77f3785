// Package store caches compiled three-address code in a SQLite database,
// keyed by the content hash of the checked program.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/pl0c/compiler/export"
	"github.com/chazu/pl0c/tac"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the requested artifact isn't cached.
var ErrNotFound = errors.New("artifact not found")

var log = commonlog.GetLogger("pl0c.store")

// Artifact is one cached compilation.
type Artifact struct {
	Key       string
	Path      string // source path the artifact was built from
	Code      *tac.Code
	CreatedAt time.Time
}

// Store is a SQLite-backed artifact cache. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Key combines a program hash with the entry label, which changes the
// generated code without changing the program.
func Key(hash, mainLabel string) string {
	return hash + ":" + mainLabel
}

// Open opens or creates the cache database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps in-memory databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS artifacts (
		key TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		code BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened artifact cache %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores an artifact, replacing any previous entry for the key.
func (s *Store) Put(ctx context.Context, a *Artifact) error {
	data, err := export.MarshalCode(a.Code)
	if err != nil {
		return err
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO artifacts (key, path, code, created_at) VALUES (?, ?, ?, ?)",
		a.Key, a.Path, data, created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	log.Debugf("stored %s (%d bytes)", a.Key, len(data))
	return nil
}

// Get retrieves an artifact. It returns ErrNotFound on a miss.
func (s *Store) Get(ctx context.Context, key string) (*Artifact, error) {
	var (
		path    string
		data    []byte
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT path, code, created_at FROM artifacts WHERE key = ?", key,
	).Scan(&path, &data, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}

	code, err := export.UnmarshalCode(data)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", key, err)
	}
	return &Artifact{Key: key, Path: path, Code: code, CreatedAt: time.Unix(created, 0)}, nil
}

// Delete removes an artifact. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM artifacts WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}

// Len returns the number of cached artifacts.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM artifacts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting artifacts: %w", err)
	}
	return n, nil
}
