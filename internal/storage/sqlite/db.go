// Package sqlite implements storage.RecordStore using SQLite via modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	cacheaside "github.com/eugener/cacheaside/internal"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements storage.RecordStore using SQLite.
type Store struct {
	write *sql.DB // single-writer connection
	read  *sql.DB // multi-reader pool
}

// pragmas apply to every connection in both pools.
const pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// New opens a SQLite database, runs migrations, and returns a Store.
// The DSN ":memory:" gives each Store its own private in-memory database.
func New(dsn string) (*Store, error) {
	fullDSN := connString(dsn)

	write, err := openPool(fullDSN, 1)
	if err != nil {
		return nil, fmt.Errorf("open write db: %w", err)
	}
	read, err := openPool(fullDSN, max(4, runtime.NumCPU()))
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read db: %w", err)
	}

	if err := runMigrations(write); err != nil {
		write.Close()
		read.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &Store{write: write, read: read}, nil
}

// connString turns a config DSN into a modernc file URI. In-memory databases
// get a unique shared-cache name so the two pools see the same data.
func connString(dsn string) string {
	if dsn == ":memory:" {
		return "file:movies-" + uuid.NewString() + "?mode=memory&cache=shared&" + pragmas
	}
	return "file:" + dsn + "?" + pragmas
}

func openPool(dsn string, conns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(conns)
	return db, nil
}

// runMigrations brings the movies schema up to date.
func runMigrations(db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sub fs: %w", err)
	}
	migrator, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	results, err := migrator.Up(context.Background())
	if err != nil {
		return err
	}
	for _, res := range results {
		slog.Debug("migration applied", "version", res.Source.Version, "duration", res.Duration)
	}
	return nil
}

// Ping checks the read pool.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.read.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", cacheaside.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes both pools.
func (s *Store) Close() error {
	return errors.Join(s.write.Close(), s.read.Close())
}

type scanner interface {
	Scan(dest ...any) error
}

// notFoundErr translates sql.ErrNoRows to cacheaside.ErrNotFound.
func notFoundErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return cacheaside.ErrNotFound
	}
	return err
}
