// Package store implements the persistence layer (spec.md §4.7/§4.9's
// Store collaborator): users, proposals, sessions, messages, and games
// backed by database/sql with driver-prefixed DSNs.
//
// Grounded on the teacher's pkg/database/database.go (driver dispatch via
// blank-imported drivers, GetDriverName) and
// internal/games/infrastructure/repository/session_repository.go (raw-SQL
// repository style, nullable-field conversion). The teacher's read/writer
// connection splitting has no counterpart here: spec.md names a single
// persistence pool, so this package opens one *sql.DB rather than two.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/lib/pq"              // postgres driver
	_ "github.com/mattn/go-sqlite3"    // sqlite3 driver

	"github.com/playferrous/playferrous/internal/txn"
	"github.com/playferrous/playferrous/pkg/config"
)

// Store is the SQL-backed implementation of internal/connection.Store and
// internal/gamesession.Store, plus the user-lookup surface
// internal/directory needs (all three share one pool rather than each
// opening their own, since the corpus shows a single Connection per
// service, not per repository).
type Store struct {
	db     *sql.DB
	driver string
	log    *slog.Logger
}

// driverName maps a config-level database type to the Go driver name
// registered by its blank import, mirroring the teacher's GetDriverName.
// pkg/config.DatabaseConfig already documents "postgres"/"sqlite3"/"mysql"
// as its canonical values, but the longer aliases are accepted too so a
// DATABASE_URL-style scheme name ("postgresql://...") doesn't need a
// caller-side translation step.
func driverName(dbType string) string {
	switch dbType {
	case "postgresql":
		return "postgres"
	case "sqlite":
		return "sqlite3"
	default:
		return dbType
	}
}

// Open opens the persistence pool named by cfg and ensures its schema
// exists.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*Store, error) {
	driver := driverName(cfg.Driver)

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin opens a persistence transaction, satisfying both
// connection.Store.Begin and gamesession.Store.Begin.
func (s *Store) Begin(ctx context.Context) (*txn.Tx, error) {
	return txn.Begin(ctx, s.db)
}

// ph renders the n-th bind placeholder for the active driver: postgres
// uses positional $N parameters, sqlite3 and mysql both use "?" (the
// teacher's repositories are postgres-only and so never needed this, but
// spec.md §6 names all three as valid `driver` values).
func (s *Store) ph(n int) string {
	if s.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// autoPK renders the primary-key column definition for the active driver.
func (s *Store) autoPK() string {
	switch s.driver {
	case "postgres":
		return "BIGSERIAL PRIMARY KEY"
	case "mysql":
		return "BIGINT PRIMARY KEY AUTO_INCREMENT"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// execQuerier is satisfied by both *txn.Tx and the plain-pool adapter
// below, letting insertReturningID run against a transaction or the bare
// pool with the same code.
type execQuerier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
}

type poolHandle struct{ db *sql.DB }

func (h poolHandle) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return h.db.ExecContext(ctx, query, args...)
}

func (h poolHandle) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return h.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) pool() execQuerier { return poolHandle{db: s.db} }

// insertReturningID runs an INSERT and returns the generated id. postgres
// has no LastInsertId support through database/sql, so on that driver the
// statement is appended with "RETURNING id" and the id scanned back;
// sqlite3 and mysql both support sql.Result.LastInsertId directly.
func (s *Store) insertReturningID(ctx context.Context, eq execQuerier, query string, args ...any) (int64, error) {
	if s.driver == "postgres" {
		var id int64
		if err := eq.QueryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := eq.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// migrate creates the schema if absent. The corpus carries no migration
// library (the teacher's own RunMigrations is a stubbed TODO reading a
// migrations table it never populates), so this runs straight
// CREATE TABLE IF NOT EXISTS statements, the same shape the teacher uses
// for its ensureSchema-equivalent calls.
func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.autoPK()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS proposals (
			id %s,
			user_id BIGINT NOT NULL,
			game_type TEXT NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			min_players INTEGER NOT NULL DEFAULT 2,
			max_players INTEGER NOT NULL DEFAULT 8,
			mod_players INTEGER NOT NULL DEFAULT 1,
			rules TEXT,
			deadline TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.autoPK()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS games (
			id %s,
			game_type TEXT NOT NULL,
			num_players INTEGER NOT NULL,
			seed BIGINT NOT NULL,
			rules TEXT NOT NULL,
			snapshot TEXT,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			result TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.autoPK()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sessions (
			id %s,
			user_id BIGINT NOT NULL,
			kind TEXT NOT NULL,
			proposal_id BIGINT,
			game_id BIGINT,
			player_idx INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.autoPK()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS messages (
			id %s,
			to_id BIGINT NOT NULL,
			from_id BIGINT,
			subject TEXT NOT NULL,
			body TEXT NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			request_id BIGINT,
			sent_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.autoPK()),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}
