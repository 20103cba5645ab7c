package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pavelanni/biopractice/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens the database for driver and ensures the schema exists.
// For sqlite, dsn is a file path (or ":memory:"); for postgres it is a connection URL.
func New(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		drvName = "sqlite"
		if dsn == "" {
			dsn = "biopractice.db"
		}
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/biopractice?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func sqliteDSN(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}
	return path + "?" + pragmas
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
	jti TEXT PRIMARY KEY,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	exam_board TEXT NOT NULL,
	UNIQUE (name, exam_board)
);

CREATE TABLE IF NOT EXISTS subtopics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	UNIQUE (topic_id, title)
);

CREATE TABLE IF NOT EXISTS subcategories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subtopic_id INTEGER NOT NULL REFERENCES subtopics(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	UNIQUE (subtopic_id, title)
);

CREATE TABLE IF NOT EXISTS question_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
	subtopic_id INTEGER REFERENCES subtopics(id) ON DELETE SET NULL,
	subcategory_id INTEGER REFERENCES subcategories(id) ON DELETE SET NULL,
	exam_board TEXT NOT NULL,
	number_of_questions INTEGER NOT NULL CHECK (number_of_questions >= 1),
	total_score REAL NOT NULL DEFAULT 0 CHECK (total_score >= 0),
	total_available INTEGER NOT NULL DEFAULT 0 CHECK (total_available >= 0),
	status TEXT NOT NULL DEFAULT 'open',
	feedback TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	finalized_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_question_sessions_user ON question_sessions(user_id, created_at);

CREATE TABLE IF NOT EXISTS app_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
	jti TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	exam_board TEXT NOT NULL,
	UNIQUE (name, exam_board)
);

CREATE TABLE IF NOT EXISTS subtopics (
	id BIGSERIAL PRIMARY KEY,
	topic_id BIGINT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	UNIQUE (topic_id, title)
);

CREATE TABLE IF NOT EXISTS subcategories (
	id BIGSERIAL PRIMARY KEY,
	subtopic_id BIGINT NOT NULL REFERENCES subtopics(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	UNIQUE (subtopic_id, title)
);

CREATE TABLE IF NOT EXISTS question_sessions (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	topic_id BIGINT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
	subtopic_id BIGINT REFERENCES subtopics(id) ON DELETE SET NULL,
	subcategory_id BIGINT REFERENCES subcategories(id) ON DELETE SET NULL,
	exam_board TEXT NOT NULL,
	number_of_questions INTEGER NOT NULL CHECK (number_of_questions >= 1),
	total_score DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (total_score >= 0),
	total_available INTEGER NOT NULL DEFAULT 0 CHECK (total_available >= 0),
	status TEXT NOT NULL DEFAULT 'open',
	feedback TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	finalized_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_question_sessions_user ON question_sessions(user_id, created_at);

CREATE TABLE IF NOT EXISTS app_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// notFound converts sql.ErrNoRows into a tagged not-found error carrying sentinel.
// isUniqueViolation reports whether err is a UNIQUE constraint failure from either backend.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}

func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotFound(sentinel)
	}
	return err
}
