// Package storage persists stories, versions, sections and segments in
// SQLite and owns the draft/publish lifecycle. Versions are immutable once
// written; the only mutable shared state is the pair of pointer columns on
// the story row, and those are only moved inside the same transaction as the
// content they point to.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hushlight/storyvault/internal/storage/migrations"
)

const defaultQueryTimeout = 3 * time.Second

// Options tunes store behavior.
type Options struct {
	// QueryTimeout bounds every storage operation. Exceeding it aborts the
	// transaction; partial writes are never observable.
	QueryTimeout time.Duration

	// StrictContributors makes contributor-link failures abort the whole
	// ingest. The default is best-effort: the author link is secondary
	// metadata and an import should not fail over it.
	StrictContributors bool
}

// Store is a SQLite-backed story version store.
type Store struct {
	db                 *sql.DB
	queryTimeout       time.Duration
	strictContributors bool
}

// Open opens the store at path and applies embedded migrations.
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	qt := opts.QueryTimeout
	if qt <= 0 {
		qt = defaultQueryTimeout
	}
	return &Store{
		db:                 sqlDB,
		queryTimeout:       qt,
		strictContributors: opts.StrictContributors,
	}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// opCtx bounds one storage operation with the configured deadline.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return strings.TrimSpace(value)
}
