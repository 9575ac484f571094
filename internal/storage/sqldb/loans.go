package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"biblioteca/internal/models"
)

const loanColumns = `isbn, user_id, started_at`

// CreateLoan inserts a loan after validating references and availability
func (d *DB) CreateLoan(ctx context.Context, loan models.Loan) error {
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		books, err := count(ctx, tx, `SELECT COUNT(*) FROM books WHERE isbn = ?`, loan.ISBN)
		if err != nil {
			return fmt.Errorf("failed to check book: %w", err)
		}
		if books == 0 {
			return fmt.Errorf("book %s: %w", loan.ISBN, models.ErrBookNotFound)
		}

		users, err := count(ctx, tx, `SELECT COUNT(*) FROM users WHERE id = ?`, loan.UserID)
		if err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if users == 0 {
			return fmt.Errorf("user %s: %w", loan.UserID, models.ErrUserNotFound)
		}

		active, err := count(ctx, tx, `SELECT COUNT(*) FROM loans WHERE isbn = ?`, loan.ISBN)
		if err != nil {
			return fmt.Errorf("failed to check loan: %w", err)
		}
		if active > 0 {
			return fmt.Errorf("book %s: %w", loan.ISBN, models.ErrAlreadyLoaned)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?)`),
			loan.ISBN, loan.UserID, loan.StartedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}
		return nil
	})
}

// GetLoan returns the active loan of a book
func (d *DB) GetLoan(ctx context.Context, isbn string) (*models.Loan, error) {
	var loan models.Loan
	err := d.db.GetContext(ctx, &loan, d.db.Rebind(`SELECT `+loanColumns+` FROM loans WHERE isbn = ?`), isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", isbn, models.ErrNoActiveLoan)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return &loan, nil
}

// ListLoans returns every active loan, oldest first
func (d *DB) ListLoans(ctx context.Context) ([]models.Loan, error) {
	loans := []models.Loan{}
	if err := d.db.SelectContext(ctx, &loans, `SELECT `+loanColumns+` FROM loans ORDER BY started_at, isbn`); err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

// ListUserLoans returns the active loans of one user, oldest first
func (d *DB) ListUserLoans(ctx context.Context, userID string) ([]models.Loan, error) {
	loans := []models.Loan{}
	query := d.db.Rebind(`SELECT ` + loanColumns + ` FROM loans WHERE user_id = ? ORDER BY started_at, isbn`)
	if err := d.db.SelectContext(ctx, &loans, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user loans: %w", err)
	}
	return loans, nil
}

// DeleteLoan ends the active loan of a book
func (d *DB) DeleteLoan(ctx context.Context, isbn string) error {
	res, err := d.db.ExecContext(ctx, d.db.Rebind(`DELETE FROM loans WHERE isbn = ?`), isbn)
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	return expectRow(res, fmt.Errorf("book %s: %w", isbn, models.ErrNoActiveLoan))
}
