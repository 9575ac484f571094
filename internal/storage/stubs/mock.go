package stubs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"biblioteca/internal/models"
	"biblioteca/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface
type MockDB struct {
	mu     sync.RWMutex
	users  map[string]models.User
	books  map[string]models.Book
	loans  map[string]models.Loan
	logins []models.LoginRecord
}

var _ storage.Storage = (*MockDB)(nil)

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		users:  make(map[string]models.User),
		books:  make(map[string]models.Book),
		loans:  make(map[string]models.Loan),
		logins: make([]models.LoginRecord, 0),
	}
}

// Initialize is a no-op; the mock starts empty
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// CreateUser stores a new user
func (m *MockDB) CreateUser(ctx context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, models.ErrDuplicateUser)
	}
	m.users[user.ID] = user
	return nil
}

// GetUser returns the user with the given id
func (m *MockDB) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrUserNotFound)
	}
	return &user, nil
}

// ListUsers returns all users sorted by id
func (m *MockDB) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// UpdateUser replaces an existing user
func (m *MockDB) UpdateUser(ctx context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; !ok {
		return fmt.Errorf("user %s: %w", user.ID, models.ErrUserNotFound)
	}
	m.users[user.ID] = user
	return nil
}

// DeleteUser removes a user that holds no loans
func (m *MockDB) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, models.ErrUserNotFound)
	}
	for _, loan := range m.loans {
		if loan.UserID == id {
			return fmt.Errorf("user %s: %w", id, models.ErrUserHasLoans)
		}
	}
	if user.IsAdministrator() {
		admins := 0
		for _, u := range m.users {
			if u.IsAdministrator() {
				admins++
			}
		}
		if admins <= 1 {
			return fmt.Errorf("user %s: %w", id, models.ErrLastAdministrator)
		}
	}
	delete(m.users, id)
	return nil
}

// CreateBook stores a new book
func (m *MockDB) CreateBook(ctx context.Context, book models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[book.ISBN]; ok {
		return fmt.Errorf("book %s: %w", book.ISBN, models.ErrDuplicateISBN)
	}
	m.books[book.ISBN] = book
	return nil
}

// GetBook returns the book with the given ISBN
func (m *MockDB) GetBook(ctx context.Context, isbn string) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	book, ok := m.books[isbn]
	if !ok {
		return nil, fmt.Errorf("book %s: %w", isbn, models.ErrBookNotFound)
	}
	return &book, nil
}

// ListBooks returns all books sorted by ISBN
func (m *MockDB) ListBooks(ctx context.Context) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	books := make([]models.Book, 0, len(m.books))
	for _, b := range m.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool {
		return books[i].ISBN < books[j].ISBN
	})
	return books, nil
}

// UpdateBook replaces an existing book
func (m *MockDB) UpdateBook(ctx context.Context, book models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[book.ISBN]; !ok {
		return fmt.Errorf("book %s: %w", book.ISBN, models.ErrBookNotFound)
	}
	m.books[book.ISBN] = book
	return nil
}

// DeleteBook removes a book that is not on loan
func (m *MockDB) DeleteBook(ctx context.Context, isbn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[isbn]; !ok {
		return fmt.Errorf("book %s: %w", isbn, models.ErrBookNotFound)
	}
	if _, ok := m.loans[isbn]; ok {
		return fmt.Errorf("book %s: %w", isbn, models.ErrBookOnLoan)
	}
	delete(m.books, isbn)
	return nil
}

// ImportBooks inserts or replaces all books at once, unless one is on loan
func (m *MockDB) ImportBooks(ctx context.Context, books []models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range books {
		if _, ok := m.loans[b.ISBN]; ok {
			return fmt.Errorf("book %s: %w", b.ISBN, models.ErrBookOnLoan)
		}
	}
	for _, b := range books {
		m.books[b.ISBN] = b
	}
	return nil
}

// CreateLoan records a checkout after checking both references
func (m *MockDB) CreateLoan(ctx context.Context, loan models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[loan.ISBN]; !ok {
		return fmt.Errorf("book %s: %w", loan.ISBN, models.ErrBookNotFound)
	}
	if _, ok := m.users[loan.UserID]; !ok {
		return fmt.Errorf("user %s: %w", loan.UserID, models.ErrUserNotFound)
	}
	if _, ok := m.loans[loan.ISBN]; ok {
		return fmt.Errorf("book %s: %w", loan.ISBN, models.ErrAlreadyLoaned)
	}
	m.loans[loan.ISBN] = loan
	return nil
}

// GetLoan returns the active loan of a book
func (m *MockDB) GetLoan(ctx context.Context, isbn string) (*models.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loan, ok := m.loans[isbn]
	if !ok {
		return nil, fmt.Errorf("book %s: %w", isbn, models.ErrNoActiveLoan)
	}
	return &loan, nil
}

// ListLoans returns all active loans ordered by start time
func (m *MockDB) ListLoans(ctx context.Context) ([]models.Loan, error) {
	return m.filterLoans(func(models.Loan) bool { return true }), nil
}

// ListUserLoans returns the active loans of one user
func (m *MockDB) ListUserLoans(ctx context.Context, userID string) ([]models.Loan, error) {
	return m.filterLoans(func(l models.Loan) bool { return l.UserID == userID }), nil
}

func (m *MockDB) filterLoans(keep func(models.Loan) bool) []models.Loan {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loans := make([]models.Loan, 0)
	for _, l := range m.loans {
		if keep(l) {
			loans = append(loans, l)
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		if loans[i].StartedAt.Equal(loans[j].StartedAt) {
			return loans[i].ISBN < loans[j].ISBN
		}
		return loans[i].StartedAt.Before(loans[j].StartedAt)
	})
	return loans
}

// DeleteLoan ends the active loan of a book
func (m *MockDB) DeleteLoan(ctx context.Context, isbn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loans[isbn]; !ok {
		return fmt.Errorf("book %s: %w", isbn, models.ErrNoActiveLoan)
	}
	delete(m.loans, isbn)
	return nil
}

// AppendLogin adds a login record
func (m *MockDB) AppendLogin(ctx context.Context, record models.LoginRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logins = append(m.logins, record)
	return nil
}

// ListLogins returns the last N login records, newest first
func (m *MockDB) ListLogins(ctx context.Context, limit int) ([]models.LoginRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]models.LoginRecord, 0, len(m.logins))
	for i := len(m.logins) - 1; i >= 0; i-- {
		if limit > 0 && len(records) >= limit {
			break
		}
		records = append(records, m.logins[i])
	}
	return records, nil
}

// Close is a no-op for the mock database
func (m *MockDB) Close() error {
	return nil
}
