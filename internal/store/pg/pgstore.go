// Package pg is the PostgreSQL implementation of the workflow store.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"journalflow.org/internal/auth"
	"journalflow.org/internal/ids"
	"journalflow.org/internal/journal"
	"journalflow.org/internal/publication"
	"journalflow.org/internal/roles"
	"journalflow.org/internal/submission"
	"journalflow.org/internal/workflow"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var (
	errUnavailable = errors.New("database connection unavailable")
	newID          = ids.New
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	repos
}

var _ workflow.Store = (*Store)(nil)

// Open connects through the pgx stdlib driver. Non-positive pool sizes fall
// back to 50 open and 25 idle connections.
func Open(dsn string, maxOpen, maxIdle int) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if maxOpen <= 0 {
		maxOpen = 50
	}
	if maxIdle <= 0 {
		maxIdle = 25
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	s := &Store{db: db}
	if db != nil {
		s.repos = repos{q: db}
	}
	return s
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB { return s.db }

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errUnavailable
	}
	return s.db.PingContext(ctx)
}

// WithinTx runs fn in a read-committed transaction. Version transitions stay
// safe under concurrency through their compare-and-set update.
func (s *Store) WithinTx(ctx context.Context, fn func(workflow.Repos) error) error {
	if s.db == nil {
		return errUnavailable
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return timeoutErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(repos{q: tx}); err != nil {
		return timeoutErr(err)
	}
	return timeoutErr(tx.Commit())
}

type repos struct {
	q dbtx
}

func (r repos) Roles() roles.Store                    { return roleRepo(r) }
func (r repos) Versions() publication.Store           { return versionRepo(r) }
func (r repos) Activity() workflow.ActivityLog        { return activityRepo(r) }
func (r repos) Journals() journal.Store               { return journalRepo(r) }
func (r repos) LibraryFiles() journal.LibraryStore    { return libraryRepo(r) }
func (r repos) Submissions() submission.Store         { return submissionRepo(r) }
func (r repos) SubmissionFiles() submission.FileStore { return submissionFileRepo(r) }
func (r repos) Users() auth.Directory                 { return userRepo(r) }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// timeoutErr makes driver-level timeouts recognisable as context deadlines.
func timeoutErr(err error) error {
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
