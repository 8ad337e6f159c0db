package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"issueboard/internal/feed"
)

// Notifier is told about every successful write, typically to reach other instances.
type Notifier interface {
	Announce(ctx context.Context) error
}

// Store wraps access to the SQLite database and exposes the issue collection
// as a live document store.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	broker   *feed.Broker
	notifier Notifier

	// held while a snapshot is loaded and handed to the broker, so
	// subscribers never observe an older snapshot after a newer one
	snapMu sync.Mutex
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger, broker: feed.NewBroker()}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// SetNotifier registers a notifier called after each successful write.
func (s *Store) SetNotifier(n Notifier) {
	s.notifier = n
}

// Subscribers reports the number of open live subscriptions.
func (s *Store) Subscribers() int {
	return s.broker.Count()
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS issues (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            priority TEXT NOT NULL DEFAULT 'Medium',
            status TEXT NOT NULL DEFAULT 'Open',
            assigned_to TEXT NOT NULL,
            created_by TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_issues_created ON issues(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_issues_status_priority ON issues(status, priority);`,
		`CREATE TRIGGER IF NOT EXISTS trg_issues_immutable
            BEFORE UPDATE OF id, created_by, created_at ON issues
            FOR EACH ROW BEGIN
                SELECT RAISE(ABORT, 'issue id, created_by and created_at are immutable');
            END;`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Subscribe opens a live subscription seeded with the current collection,
// newest issue first. The caller must Close it.
func (s *Store) Subscribe(ctx context.Context) (*feed.Subscription, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	issues, err := s.ListIssues(ctx)
	if err != nil {
		return nil, err
	}
	return s.broker.Subscribe(issues), nil
}

// Refresh reloads the collection and publishes it to every subscriber.
func (s *Store) Refresh(ctx context.Context) error {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	issues, err := s.ListIssues(ctx)
	if err != nil {
		return err
	}
	s.broker.Publish(issues)
	return nil
}

// afterWrite pushes the new state to local subscribers and other instances.
// Failures are logged only: the write itself already succeeded. The caller's
// cancellation is dropped so a committed write is always published.
func (s *Store) afterWrite(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("publish snapshot failed", slog.String("error", err.Error()))
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Announce(ctx); err != nil {
		s.logger.Warn("announce change failed", slog.String("error", err.Error()))
	}
}
