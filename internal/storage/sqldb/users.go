package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"biblioteca/internal/models"
)

const userColumns = `id, name, surname1, surname2, password_hash, role, created_at`

// CreateUser inserts a user, failing when the id is taken
func (d *DB) CreateUser(ctx context.Context, user models.User) error {
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := count(ctx, tx, `SELECT COUNT(*) FROM users WHERE id = ?`, user.ID)
		if err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("user %s: %w", user.ID, models.ErrDuplicateUser)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
			user.ID, user.Name, user.Surname1, user.Surname2, user.PasswordHash, string(user.Role), user.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
}

// GetUser returns a user by id
func (d *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.db.GetContext(ctx, &user, d.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns all users ordered by id
func (d *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := d.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUser overwrites profile, password hash and role of an existing user
func (d *DB) UpdateUser(ctx context.Context, user models.User) error {
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := count(ctx, tx, `SELECT COUNT(*) FROM users WHERE id = ?`, user.ID)
		if err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("user %s: %w", user.ID, models.ErrUserNotFound)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET name = ?, surname1 = ?, surname2 = ?, password_hash = ?, role = ? WHERE id = ?`),
			user.Name, user.Surname1, user.Surname2, user.PasswordHash, string(user.Role), user.ID)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	})
}

// DeleteUser removes a user without loans, keeping at least one administrator
func (d *DB) DeleteUser(ctx context.Context, id string) error {
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		var role string
		err := tx.GetContext(ctx, &role, tx.Rebind(`SELECT role FROM users WHERE id = ?`), id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %s: %w", id, models.ErrUserNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}

		loans, err := count(ctx, tx, `SELECT COUNT(*) FROM loans WHERE user_id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to count loans: %w", err)
		}
		if loans > 0 {
			return fmt.Errorf("user %s: %w", id, models.ErrUserHasLoans)
		}

		if models.Role(role) == models.RoleAdministrator {
			admins, err := count(ctx, tx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(models.RoleAdministrator))
			if err != nil {
				return fmt.Errorf("failed to count administrators: %w", err)
			}
			if admins <= 1 {
				return fmt.Errorf("user %s: %w", id, models.ErrLastAdministrator)
			}
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
}

// expectRow returns notFound when res affected no rows
func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
