package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"biblioteca/internal/models"
)

const bookColumns = `isbn, title, author, publisher, year`

// CreateBook inserts a book, failing when the ISBN exists
func (d *DB) CreateBook(ctx context.Context, book models.Book) error {
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := count(ctx, tx, `SELECT COUNT(*) FROM books WHERE isbn = ?`, book.ISBN)
		if err != nil {
			return fmt.Errorf("failed to check book: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("book %s: %w", book.ISBN, models.ErrDuplicateISBN)
		}
		return insertBook(ctx, tx, book)
	})
}

func insertBook(ctx context.Context, tx *sqlx.Tx, book models.Book) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO books (`+bookColumns+`) VALUES (?, ?, ?, ?, ?)`),
		book.ISBN, book.Title, book.Author, book.Publisher, book.Year)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

func updateBook(ctx context.Context, tx *sqlx.Tx, book models.Book) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE books SET title = ?, author = ?, publisher = ?, year = ? WHERE isbn = ?`),
		book.Title, book.Author, book.Publisher, book.Year, book.ISBN)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	return nil
}

// GetBook returns a book by ISBN
func (d *DB) GetBook(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	err := d.db.GetContext(ctx, &book, d.db.Rebind(`SELECT `+bookColumns+` FROM books WHERE isbn = ?`), isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", isbn, models.ErrBookNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return &book, nil
}

// ListBooks returns all books ordered by ISBN
func (d *DB) ListBooks(ctx context.Context) ([]models.Book, error) {
	books := []models.Book{}
	if err := d.db.SelectContext(ctx, &books, `SELECT `+bookColumns+` FROM books ORDER BY isbn`); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// UpdateBook overwrites the descriptive fields of an existing book
func (d *DB) UpdateBook(ctx context.Context, book models.Book) error {
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := count(ctx, tx, `SELECT COUNT(*) FROM books WHERE isbn = ?`, book.ISBN)
		if err != nil {
			return fmt.Errorf("failed to check book: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("book %s: %w", book.ISBN, models.ErrBookNotFound)
		}
		return updateBook(ctx, tx, book)
	})
}

// DeleteBook removes a book that is not on loan
func (d *DB) DeleteBook(ctx context.Context, isbn string) error {
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		loans, err := count(ctx, tx, `SELECT COUNT(*) FROM loans WHERE isbn = ?`, isbn)
		if err != nil {
			return fmt.Errorf("failed to check loan: %w", err)
		}
		if loans > 0 {
			return fmt.Errorf("book %s: %w", isbn, models.ErrBookOnLoan)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM books WHERE isbn = ?`), isbn)
		if err != nil {
			return fmt.Errorf("failed to delete book: %w", err)
		}
		return expectRow(res, fmt.Errorf("book %s: %w", isbn, models.ErrBookNotFound))
	})
}

// ImportBooks inserts new books and replaces existing ones in one
// transaction. A book on loan aborts the whole import.
func (d *DB) ImportBooks(ctx context.Context, books []models.Book) error {
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, book := range books {
			n, err := count(ctx, tx, `SELECT COUNT(*) FROM books WHERE isbn = ?`, book.ISBN)
			if err != nil {
				return fmt.Errorf("failed to check book %s: %w", book.ISBN, err)
			}
			if n > 0 {
				var loans int
				loans, err = count(ctx, tx, `SELECT COUNT(*) FROM loans WHERE isbn = ?`, book.ISBN)
				if err != nil {
					return fmt.Errorf("failed to check loan %s: %w", book.ISBN, err)
				}
				if loans > 0 {
					return fmt.Errorf("book %s: %w", book.ISBN, models.ErrBookOnLoan)
				}
				err = updateBook(ctx, tx, book)
			} else {
				err = insertBook(ctx, tx, book)
			}
			if err != nil {
				return fmt.Errorf("book %s: %w", book.ISBN, err)
			}
		}
		return nil
	})
}
