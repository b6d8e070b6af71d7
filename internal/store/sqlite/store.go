// Package sqlite is the default store.Store backend, a single SQLite file
// accessed through the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shelfwise/shelfwise-server/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed persistence.
type Store struct {
	db     *sql.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
//
// Pragmas are set through the DSN so every pooled connection gets them, and
// transactions begin IMMEDIATE so a read-then-write unit of work never fails
// to upgrade its lock under WAL.
func Open(path string, logger *slog.Logger, opts ...store.Option) (*Store, error) {
	o := store.ApplyOptions(opts...)

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")

	db, err := sql.Open("sqlite", path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger.Debug("sqlite store opened", "path", path)
	return &Store{db: db, clock: o.Clock, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// View runs fn inside a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, userID string, fn func(store.Library) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	return fn(&library{tx: tx, userID: userID, clock: s.clock})
}

// Update runs fn inside a transaction committed when fn succeeds.
func (s *Store) Update(ctx context.Context, userID string, fn func(store.Library) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&library{tx: tx, userID: userID, clock: s.clock}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// library is store.Library over one transaction, scoped to userID.
type library struct {
	tx     *sql.Tx
	userID string
	clock  clockwork.Clock
}

func (l *library) UserID() string { return l.userID }

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// nullString returns a sql.NullString, invalid for the empty string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// rowsAffected returns store.ErrNotFound when res changed nothing.
func rowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// stamp returns t, or the current time when t is zero.
func (l *library) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return l.clock.Now()
	}
	return t
}
