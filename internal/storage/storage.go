package storage

import (
	"context"

	"biblioteca/internal/models"
)

// Users defines credential store operations
type Users interface {
	// CreateUser fails with models.ErrDuplicateUser when the id is taken
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, user models.User) error

	// DeleteUser fails with models.ErrUserHasLoans while the user holds a loan
	// and with models.ErrLastAdministrator when removing the only administrator
	DeleteUser(ctx context.Context, id string) error
}

// Books defines catalog storage operations
type Books interface {
	// CreateBook fails with models.ErrDuplicateISBN when the ISBN exists
	CreateBook(ctx context.Context, book models.Book) error
	GetBook(ctx context.Context, isbn string) (*models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	UpdateBook(ctx context.Context, book models.Book) error
	DeleteBook(ctx context.Context, isbn string) error

	// ImportBooks inserts or replaces every book in a single transaction
	ImportBooks(ctx context.Context, books []models.Book) error
}

// Loans defines loan storage operations
type Loans interface {
	// CreateLoan checks both references and the active loan of the ISBN
	// atomically with the insert
	CreateLoan(ctx context.Context, loan models.Loan) error
	GetLoan(ctx context.Context, isbn string) (*models.Loan, error)
	ListLoans(ctx context.Context) ([]models.Loan, error)
	ListUserLoans(ctx context.Context, userID string) ([]models.Loan, error)
	DeleteLoan(ctx context.Context, isbn string) error
}

// LoginLog is the append-only record of successful logins
type LoginLog interface {
	AppendLogin(ctx context.Context, record models.LoginRecord) error

	// ListLogins returns the most recent records first; limit <= 0 means all
	ListLogins(ctx context.Context, limit int) ([]models.LoginRecord, error)
}

// Storage defines the interface for data storage operations
type Storage interface {
	Users
	Books
	Loans
	LoginLog

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
