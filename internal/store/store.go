// Package store persists courses, lessons, and learner accounts in sqlite.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/frenchline/adminapi/internal/xerrors"
)

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken means another user already owns the email.
	ErrEmailTaken = errors.New("email already in use")
)

// Store wraps the sqlite database. All methods are safe for concurrent use;
// sqlx pools connections underneath.
type Store struct {
	db *sqlx.DB

	// observe, when set, receives per-query latency for prometheus
	observe func(op string, d time.Duration)

	// test seams
	now   func() time.Time
	newID func() string
}

type Option func(*Store)

// WithObserver wires query latency into a metrics sink.
func WithObserver(fn func(op string, d time.Duration)) Option {
	return func(s *Store) { s.observe = fn }
}

// Open connects to the sqlite database at dsn and ensures the schema.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, xerrors.Wrap(err, "open database")
	}

	// sqlite allows one writer, and pragmas apply per connection. A single
	// pooled connection keeps both behaviors predictable.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, xerrors.Wrapf(err, "exec %s", pragma)
		}
	}

	s := &Store{
		db:    db,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	profile_image_url TEXT NOT NULL DEFAULT '',
	current_level TEXT NOT NULL DEFAULT 'beginner'
		CHECK (current_level IN ('beginner', 'intermediate', 'advanced')),
	total_points INTEGER NOT NULL DEFAULT 0,
	streak_days INTEGER NOT NULL DEFAULT 0,
	last_activity_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS courses (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	level TEXT NOT NULL
		CHECK (level IN ('beginner', 'intermediate', 'advanced')),
	category TEXT NOT NULL DEFAULT 'general',
	image_url TEXT NOT NULL DEFAULT '',
	is_published INTEGER NOT NULL DEFAULT 0,
	sort_order INTEGER NOT NULL DEFAULT 0,
	estimated_duration_hours REAL NOT NULL DEFAULT 0,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS lessons (
	id TEXT PRIMARY KEY,
	course_id TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	media_key TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_users_last_activity ON users(last_activity_at)`,
		`CREATE INDEX IF NOT EXISTS idx_courses_level ON courses(level)`,
		`CREATE INDEX IF NOT EXISTS idx_courses_category ON courses(category)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_course ON lessons(course_id, sort_order)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return xerrors.Wrap(err, "init schema")
		}
	}
	return nil
}

// timed reports one query's latency to the observer.
func (s *Store) timed(op string) func() {
	if s.observe == nil {
		return func() {}
	}
	start := time.Now()
	return func() { s.observe(op, time.Since(start)) }
}

// isUniqueViolation detects sqlite unique constraint failures. modernc
// exposes them only through the error text.
func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a substring LIKE pattern with user-supplied wildcards
// escaped. Clauses using it must carry ESCAPE '\'.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
