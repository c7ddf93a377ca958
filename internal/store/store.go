// Package store persists the organizational data the onboarding pipeline
// runs against: roles, tasks, department task maps, and scalar config.
// All mutation happens through serialized write transactions; no partial
// mutation is ever observable.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrAbort discards every change made inside the current transaction.
// WriteTransaction treats it as a clean rollback, not a failure.
var ErrAbort = errors.New("transaction aborted")

// Config keys the onboarding pipeline depends on.
const (
	// ConfigDefaultProject is the identifier of the Redmine project under
	// which onboarding tickets are filed.
	ConfigDefaultProject = "default_redmine_project"
	// ConfigHiringManager is the Redmine login of the hiring manager, who
	// is assigned every parent ticket.
	ConfigHiringManager = "hiring_manager"
)

const schema = `
CREATE TABLE IF NOT EXISTS roles (
	name TEXT PRIMARY KEY,
	user TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	subject    TEXT PRIMARY KEY,
	role       TEXT NOT NULL,
	long_descr TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS taskmaps (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS taskmap_tasks (
	taskmap  TEXT NOT NULL REFERENCES taskmaps(name) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	subject  TEXT NOT NULL,
	PRIMARY KEY (taskmap, position)
);
CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is the SQLite-backed transactional store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	path   string

	// Write transactions are globally serialized. SQLite would serialize
	// them anyway; holding the mutex keeps contention out of the driver
	// and makes the single-writer contract explicit.
	mu sync.Mutex
}

// Open creates or opens the store database at path, creating parent
// directories and bootstrapping the schema as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}

	return &Store{db: db, logger: logger, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Read returns the config value stored under key, or "" when unset.
func (s *Store) Read(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading config %q: %w", key, err)
	}
	return value, nil
}

// WriteTransaction runs fn against a mutable view of the store. A nil return
// commits every change atomically; any error rolls everything back. Returning
// ErrAbort rolls back without surfacing an error to the caller. Transactions
// run one at a time.
func (s *Store) WriteTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&Tx{tx: sqlTx, ctx: ctx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		if errors.Is(err, ErrAbort) {
			return nil
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
