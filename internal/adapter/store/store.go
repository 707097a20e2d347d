package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/config"
	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
)

// Store is the persistence gateway for stations and readings. Every write
// runs in its own transaction; there is no batch atomicity.
// It implements pipeline.Store.
type Store struct {
	db               *sqlx.DB
	insertReadingSQL string
	logger           *slog.Logger
}

// New wraps an open database handle. policy is one of the config.Conflict* values.
func New(db *sqlx.DB, policy string, logger *slog.Logger) (*Store, error) {
	q, err := insertReadingQuery(policy)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, insertReadingSQL: q, logger: logger}, nil
}

// Open connects to the configured database, verifies it is reachable, and
// creates the postgres schema when missing.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	var dsn string
	switch cfg.DBDriver {
	case "postgres":
		dsn = PostgresURL(cfg)
	case "sqlite3":
		dsn = "file:" + cfg.SQLitePath + "?_busy_timeout=5000&_journal_mode=WAL"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := sqlx.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", domain.ErrPersistenceUnavailable, cfg.DBDriver, err)
	}

	if cfg.DBDriver == "postgres" && cfg.DBSchema != "" {
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(cfg.DBSchema)); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema %s: %w", cfg.DBSchema, err)
		}
	}

	s, err := New(db, cfg.ReadingConflictPolicy, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("database connected", "driver", cfg.DBDriver, "schema", cfg.DBSchema)
	return s, nil
}

// PostgresURL builds a lib/pq connection URL that pins search_path to the configured schema.
func PostgresURL(cfg *config.Config) string {
	q := url.Values{}
	q.Set("sslmode", cfg.DBSSLMode)
	if cfg.DBSchema != "" {
		q.Set("search_path", cfg.DBSchema)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort)),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// CheckReadiness reports whether the database answers a ping.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn in its own transaction and classifies any failure.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) (int64, error)) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", domain.ErrPersistenceUnavailable, err)
	}

	n, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return 0, classify(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, classify(fmt.Errorf("commit: %w", err))
	}
	return n, nil
}

// classify maps a driver error onto the conflict/unavailable split the walker
// acts on. Connection-level failures are unavailable; everything else is a
// row-level conflict.
func classify(err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistenceConflict, err)
}

func isUnavailable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", // connection exception
			"53", // insufficient resources
			"57": // operator intervention
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen,
			sqlite3.ErrIoErr, sqlite3.ErrFull, sqlite3.ErrReadonly, sqlite3.ErrNotADB:
			return true
		}
		return false
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
