package sqldb

import (
	"context"
	"fmt"

	"biblioteca/internal/models"
)

// AppendLogin writes one login record
func (d *DB) AppendLogin(ctx context.Context, record models.LoginRecord) error {
	_, err := d.db.ExecContext(ctx, d.db.Rebind(`INSERT INTO login_log (id, user_id, logged_at, remote_addr) VALUES (?, ?, ?, ?)`),
		record.ID, record.UserID, record.LoggedAt.UTC(), record.RemoteAddr)
	if err != nil {
		return fmt.Errorf("failed to append login: %w", err)
	}
	return nil
}

// ListLogins returns the last N login records, newest first
func (d *DB) ListLogins(ctx context.Context, limit int) ([]models.LoginRecord, error) {
	query := `SELECT id, user_id, logged_at, remote_addr FROM login_log ORDER BY logged_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	records := []models.LoginRecord{}
	if err := d.db.SelectContext(ctx, &records, d.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list logins: %w", err)
	}
	return records, nil
}
