// Package sqldb implements storage.Storage on top of a SQL database through
// sqlx. SQLite, PostgreSQL and MySQL share one set of goose migrations.
package sqldb

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"biblioteca/internal/storage"
)

// Migrations holds the schema migrations applied by Initialize
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations, relative to this package
const MigrationsDir = "migrations"

// Supported driver names; each is also the goose dialect name
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// goose keeps its dialect and file system in package globals
var gooseMu sync.Mutex

// DB is a SQL-backed library store
type DB struct {
	db     *sqlx.DB
	driver string
	logger *zap.Logger
}

var _ storage.Storage = (*DB)(nil)

// Open connects to the database identified by driver and dsn
func Open(driver, dsn string, logger *zap.Logger) (*DB, error) {
	switch driver {
	case DriverSQLite:
		dsn = withParam(dsn, "_busy_timeout", "5000")
		dsn = withParam(dsn, "_foreign_keys", "on")
	case DriverMySQL:
		dsn = withParam(dsn, "parseTime", "true")
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	// SQLite allows a single writer; one connection keeps transactions from
	// failing with SQLITE_BUSY instead of waiting
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	return &DB{db: db, driver: driver, logger: logger}, nil
}

// withParam appends key=value to the query of dsn unless key is already set
func withParam(dsn, key, value string) string {
	if _, query, ok := strings.Cut(dsn, "?"); ok {
		for _, pair := range strings.Split(query, "&") {
			if k, _, _ := strings.Cut(pair, "="); k == key {
				return dsn
			}
		}
		return dsn + "&" + key + "=" + value
	}
	return dsn + "?" + key + "=" + value
}

// Initialize applies pending migrations
func (d *DB) Initialize(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(Migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(NewGooseLogger(d.logger))

	if err := goose.SetDialect(d.driver); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, d.db.DB, MigrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back when fn fails
func (d *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// getter is satisfied by both *sqlx.DB and *sqlx.Tx
type getter interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

// count runs a COUNT(*) query written with ? placeholders
func count(ctx context.Context, q getter, query string, args ...interface{}) (int, error) {
	var n int
	if err := q.GetContext(ctx, &n, q.Rebind(query), args...); err != nil {
		return 0, err
	}
	return n, nil
}

// GooseLogger routes goose output to zap
type GooseLogger struct {
	sugar *zap.SugaredLogger
}

// NewGooseLogger wraps a zap logger for goose.SetLogger
func NewGooseLogger(logger *zap.Logger) *GooseLogger {
	return &GooseLogger{sugar: logger.Sugar()}
}

// Printf logs an informational goose message
func (g *GooseLogger) Printf(format string, v ...interface{}) {
	g.sugar.Infof(strings.TrimSuffix(format, "\n"), v...)
}

// Fatalf logs a goose failure and exits
func (g *GooseLogger) Fatalf(format string, v ...interface{}) {
	g.sugar.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}
