// Package loans checks books out to users and back in.
package loans

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"biblioteca/internal/keylock"
	"biblioteca/internal/models"
	"biblioteca/internal/notify"
	"biblioteca/internal/storage"
)

// Service implements loan rules. At most one loan per ISBN exists at any
// time: the per-ISBN lock serializes callers and the store re-checks inside
// its transaction.
type Service struct {
	loans     storage.Loans
	books     storage.Books
	locks     *keylock.Locker
	publisher notify.Publisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a loan service; publisher receives every checkout and
// return and may be nil
func NewService(loans storage.Loans, books storage.Books, locks *keylock.Locker, publisher notify.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Service{
		loans:     loans,
		books:     books,
		locks:     locks,
		publisher: publisher,
		now:       time.Now,
		logger:    logger,
	}
}

// CreateLoan checks isbn out to userID
func (s *Service) CreateLoan(ctx context.Context, isbn, userID string) (*models.Loan, error) {
	isbn = strings.TrimSpace(isbn)
	userID = strings.TrimSpace(userID)
	if isbn == "" || userID == "" {
		return nil, fmt.Errorf("isbn and user id are required: %w", models.ErrInvalidInput)
	}

	unlock := s.locks.Lock("loan:" + isbn)
	defer unlock()

	loan := models.Loan{ISBN: isbn, UserID: userID, StartedAt: s.now().UTC()}
	if err := s.loans.CreateLoan(ctx, loan); err != nil {
		return nil, err
	}

	s.logger.Info("Loan created", zap.String("isbn", isbn), zap.String("user_id", userID))
	s.publish(ctx, notify.EventLoanCreated, loan)
	return &loan, nil
}

// DeleteLoan returns a book. Only the borrower or an administrator may do it.
func (s *Service) DeleteLoan(ctx context.Context, caller models.Identity, isbn string) error {
	unlock := s.locks.Lock("loan:" + isbn)
	defer unlock()

	loan, err := s.loans.GetLoan(ctx, isbn)
	if err != nil {
		return err
	}
	if loan.UserID != caller.UserID && !caller.IsAdministrator() {
		return fmt.Errorf("book %s is lent to another user: %w", isbn, models.ErrForbidden)
	}
	if err := s.loans.DeleteLoan(ctx, isbn); err != nil {
		return err
	}

	s.logger.Info("Loan returned",
		zap.String("isbn", isbn),
		zap.String("user_id", loan.UserID),
		zap.String("returned_by", caller.UserID),
	)
	s.publish(ctx, notify.EventLoanReturned, models.Loan{ISBN: isbn, UserID: loan.UserID, StartedAt: s.now().UTC()})
	return nil
}

// List returns every active loan
func (s *Service) List(ctx context.Context) ([]models.Loan, error) {
	return s.loans.ListLoans(ctx)
}

// ListForUser returns the active loans of one user
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Loan, error) {
	return s.loans.ListUserLoans(ctx, userID)
}

func (s *Service) publish(ctx context.Context, kind notify.EventType, loan models.Loan) {
	event := notify.Event{Type: kind, ISBN: loan.ISBN, UserID: loan.UserID, At: loan.StartedAt}
	if book, err := s.books.GetBook(ctx, loan.ISBN); err == nil {
		event.Title = book.Title
	}
	s.publisher.Publish(ctx, event)
}
