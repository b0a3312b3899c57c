package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/fxsql/internal/metadata"
	"github.com/roach88/fxsql/internal/querysql"
)

// DefaultDriver is the driver Open uses.
const DefaultDriver = "sqlite3"

// Store answers retrieval requests from a SQL database.
type Store struct {
	db       *sql.DB
	md       metadata.Provider
	compiler *querysql.Compiler
}

// Open creates or opens a SQLite database at the given path using the
// default driver.
func Open(path string, md metadata.Provider) (*Store, error) {
	return OpenDriver(DefaultDriver, path, md)
}

// OpenDriver opens a database through the named database/sql driver.
// For the SQLite drivers dsn is a file path and the required pragmas are
// applied; for pgx it is a connection string.
func OpenDriver(driver, dsn string, md metadata.Provider) (*Store, error) {
	if md == nil {
		return nil, fmt.Errorf("metadata is required")
	}
	dialect, err := querysql.DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == querysql.SQLite {
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return &Store{
		db:       db,
		md:       md,
		compiler: querysql.NewCompiler(md, dialect),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateTable creates the named metadata table if it does not exist.
func (s *Store) CreateTable(ctx context.Context, name string) error {
	ddl, err := s.compiler.CreateTable(name)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	return nil
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
