package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tfql/internal/querysql"
)

var (
	//go:embed schema_sqlite.sql
	sqliteSchema string

	//go:embed schema_duckdb.sql
	duckdbSchema string

	//go:embed schema_postgres.sql
	postgresSchema string
)

// Schema version tracking (sqlite only, via PRAGMA user_version):
// 0 - Initial schema (pre-migration)
// 1 - Added index on transcripts.model
const currentSchemaVersion = 1

// Default bound-parameter budgets per statement.
const (
	sqliteMaxParams = 32766
	duckdbMaxParams = 65535
	pgMaxParams     = 65535
)

// Store provides transcript storage and filtered reads over database/sql.
type Store struct {
	db        *sql.DB
	dialect   querysql.Dialect
	logger    *slog.Logger
	maxParams int
	now       func() time.Time
	newID     func() string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxParams caps the bound parameters SelectByIDs puts in one
// statement.
func WithMaxParams(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxParams = n
		}
	}
}

// WithClock replaces time.Now for created_at defaults and filter
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces uuid.NewString for transcripts written without
// an ID.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New wraps an existing database handle. The schema is not applied; use
// Open, OpenDuckDB or OpenPostgres for a ready-to-use store.
func New(db *sql.DB, dialect querysql.Dialect, opts ...Option) (*Store, error) {
	d, err := querysql.ParseDialect(string(dialect))
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:      db,
		dialect: d,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	switch d {
	case querysql.SQLite:
		s.maxParams = sqliteMaxParams
	case querysql.DuckDB:
		s.maxParams = duckdbMaxParams
	default:
		s.maxParams = pgMaxParams
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store", "dialect", string(d))
	return s, nil
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s, err := New(db, querysql.SQLite, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Debug("opened store", "path", path)
	return s, nil
}

// OpenDuckDB creates or opens a DuckDB database file. An empty path opens
// an in-memory database.
func OpenDuckDB(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(duckdbSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s, err := New(db, querysql.DuckDB, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Debug("opened store", "path", path)
	return s, nil
}

// OpenPostgres connects to a PostgreSQL server and ensures the schema
// exists.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s, err := New(db, querysql.Postgres, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Debug("opened store")
	return s, nil
}

// Close closes the database connection.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect reports the SQL dialect conditions are compiled for.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	// Set version after all migrations
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds an index for the common model filter.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transcripts_model
		ON transcripts(model)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
