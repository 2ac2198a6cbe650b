// Package storage provides SQLite persistence for articles and collection sessions.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

var memoryDBCounter atomic.Int64

// Store handles SQLite persistence.
// All methods are safe for concurrent use; writes are serialized through an internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a Store at path and creates tables if they don't exist.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	connStr := "file:" + path + "?_pragma=busy_timeout(5000)"
	memory := path == ":memory:"
	if memory {
		// Shared cache keeps every pooled connection on the same database; the
		// unique name keeps separate stores apart.
		connStr = fmt.Sprintf("file:newsagent-%d?mode=memory&cache=shared", memoryDBCounter.Add(1))
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT,
		criteria TEXT,
		feeds TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		content TEXT,
		link TEXT NOT NULL UNIQUE,
		source TEXT,
		content_hash TEXT,
		published_at INTEGER,
		collected_at INTEGER NOT NULL,
		scope_id INTEGER,
		is_duplicate INTEGER NOT NULL DEFAULT 0,
		duplicate_of INTEGER,
		relevance_score REAL,
		is_relevant INTEGER,
		classification_reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_articles_content_hash ON articles(content_hash);
	CREATE INDEX IF NOT EXISTS idx_articles_scope ON articles(scope_id);
	CREATE INDEX IF NOT EXISTS idx_articles_unprocessed ON articles(is_duplicate, relevance_score);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// withTx runs fn in a transaction. The transaction is committed when fn returns nil and rolled back
// on error or panic. Callers must hold the write lock.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
