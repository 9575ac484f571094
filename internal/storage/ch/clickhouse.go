package ch

import (
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"io/fs"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/pressly/goose/v3"

	"biblioteca/internal/models"
	"biblioteca/internal/storage"
)

// Migrations holds the ClickHouse schema applied by Initialize and cmd/migrate
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations, relative to this package
const MigrationsDir = "migrations"

// ClickHouseDB stores the login log in ClickHouse
type ClickHouseDB struct {
	conn    clickhouse.Conn
	options *clickhouse.Options
}

var _ storage.LoginLog = (*ClickHouseDB)(nil)

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	if useTLS {
		options.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn, options: options}, nil
}

// Initialize applies the embedded migrations through a database/sql handle
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	fsys, err := fs.Sub(Migrations, MigrationsDir)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	sqlDB := clickhouse.OpenDB(db.options)
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectClickHouse, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// AppendLogin inserts one login record
func (db *ClickHouseDB) AppendLogin(ctx context.Context, record models.LoginRecord) error {
	err := db.conn.Exec(ctx, `INSERT INTO login_log (id, user_id, logged_at, remote_addr) VALUES (?, ?, ?, ?)`,
		record.ID, record.UserID, record.LoggedAt.UTC(), record.RemoteAddr)
	if err != nil {
		return fmt.Errorf("failed to append login: %w", err)
	}
	return nil
}

// ListLogins returns the last N login records, newest first
func (db *ClickHouseDB) ListLogins(ctx context.Context, limit int) ([]models.LoginRecord, error) {
	query := `SELECT id, user_id, logged_at, remote_addr FROM login_log ORDER BY logged_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list logins: %w", err)
	}
	defer rows.Close()

	records := []models.LoginRecord{}
	for rows.Next() {
		var record models.LoginRecord
		if err := rows.Scan(&record.ID, &record.UserID, &record.LoggedAt, &record.RemoteAddr); err != nil {
			return nil, fmt.Errorf("failed to scan login: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
