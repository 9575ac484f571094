// Package catalog manages the book records, their covers and bulk
// import/export.
package catalog

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"biblioteca/internal/covers"
	"biblioteca/internal/exchange"
	"biblioteca/internal/keylock"
	"biblioteca/internal/models"
	"biblioteca/internal/storage"
)

// Lookup resolves book metadata by ISBN
type Lookup interface {
	Lookup(ctx context.Context, isbn string) (models.Book, error)
}

// Entry is a book together with its loan status
type Entry struct {
	XMLName     xml.Name `json:"-" xml:"book" yaml:"-"`
	models.Book `yaml:",inline"`

	Available bool       `json:"available" xml:"available" yaml:"available"`
	Borrower  string     `json:"borrower,omitempty" xml:"borrower,omitempty" yaml:"borrower,omitempty"`
	LoanedAt  *time.Time `json:"loaned_at,omitempty" xml:"loaned_at,omitempty" yaml:"loaned_at,omitempty"`
}

// Service implements the catalog rules on top of the book and loan stores
type Service struct {
	books  storage.Books
	loans  storage.Loans
	covers *covers.Store
	lookup Lookup
	locks  *keylock.Locker
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a catalog service. lookup may be nil, in which case
// drafts without a title are rejected.
func NewService(books storage.Books, loans storage.Loans, coverStore *covers.Store, lookup Lookup, locks *keylock.Locker, logger *zap.Logger) *Service {
	return &Service{
		books:  books,
		loans:  loans,
		covers: coverStore,
		lookup: lookup,
		locks:  locks,
		now:    time.Now,
		logger: logger,
	}
}

// Create adds a book. Blank fields are filled from the ISBN lookup; the
// lookup is mandatory only when the title is missing.
func (s *Service) Create(ctx context.Context, draft models.Book) (*models.Book, error) {
	book := trimBook(draft)
	if err := checkISBN(book.ISBN); err != nil {
		return nil, err
	}

	if _, err := s.books.GetBook(ctx, book.ISBN); err == nil {
		return nil, fmt.Errorf("book %s: %w", book.ISBN, models.ErrDuplicateISBN)
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if !book.Complete() {
		enriched, err := s.enrich(ctx, book)
		if err != nil {
			if book.Title == "" {
				return nil, err
			}
			s.logger.Warn("Creating book without lookup data", zap.String("isbn", book.ISBN), zap.Error(err))
		} else {
			book = enriched
		}
	}
	if book.Title == "" {
		return nil, fmt.Errorf("book %s has no title: %w", book.ISBN, models.ErrInvalidInput)
	}
	if err := checkText(book); err != nil {
		return nil, fmt.Errorf("book %s: %w", book.ISBN, err)
	}

	unlock := s.locks.Lock("book:" + book.ISBN)
	defer unlock()

	if err := s.books.CreateBook(ctx, book); err != nil {
		return nil, err
	}

	s.logger.Info("Book created", zap.String("isbn", book.ISBN), zap.String("title", book.Title))
	return &book, nil
}

// enrich fills the blank fields of book from the lookup service
func (s *Service) enrich(ctx context.Context, book models.Book) (models.Book, error) {
	if s.lookup == nil {
		return book, fmt.Errorf("no lookup service configured: %w", models.ErrExternalLookupUnavailable)
	}
	found, err := s.lookup.Lookup(ctx, book.ISBN)
	if err != nil {
		return book, err
	}
	if book.Title == "" {
		book.Title = found.Title
	}
	if book.Author == "" {
		book.Author = found.Author
	}
	if book.Publisher == "" {
		book.Publisher = found.Publisher
	}
	if book.Year == 0 {
		book.Year = found.Year
	}
	return book, nil
}

// Get returns one book
func (s *Service) Get(ctx context.Context, isbn string) (*models.Book, error) {
	return s.books.GetBook(ctx, isbn)
}

// Describe returns a book with its availability; detailed reveals the
// borrower and the loan date
func (s *Service) Describe(ctx context.Context, isbn string, detailed bool) (*Entry, error) {
	book, err := s.books.GetBook(ctx, isbn)
	if err != nil {
		return nil, err
	}

	entry := &Entry{Book: *book, Available: true}
	loan, err := s.loans.GetLoan(ctx, isbn)
	switch {
	case errors.Is(err, models.ErrNoActiveLoan):
	case err != nil:
		return nil, err
	default:
		entry.Available = false
		if detailed {
			started := loan.StartedAt
			entry.Borrower = loan.UserID
			entry.LoanedAt = &started
		}
	}
	return entry, nil
}

// List returns every book sorted by ISBN
func (s *Service) List(ctx context.Context) ([]models.Book, error) {
	return s.books.ListBooks(ctx)
}

// Update replaces the descriptive fields of a book that is not on loan
func (s *Service) Update(ctx context.Context, isbn string, changes models.Book) (*models.Book, error) {
	book := trimBook(changes)
	book.ISBN = isbn
	if book.Title == "" {
		return nil, fmt.Errorf("title is required: %w", models.ErrInvalidInput)
	}
	if err := checkText(book); err != nil {
		return nil, err
	}

	unlock := s.lockBookAndLoan(isbn)
	defer unlock()

	if _, err := s.books.GetBook(ctx, isbn); err != nil {
		return nil, err
	}
	if err := s.checkNotLoaned(ctx, isbn); err != nil {
		return nil, err
	}
	if err := s.books.UpdateBook(ctx, book); err != nil {
		return nil, err
	}

	s.logger.Info("Book updated", zap.String("isbn", isbn))
	return &book, nil
}

// Delete removes a book that is not on loan together with its cover
func (s *Service) Delete(ctx context.Context, isbn string) error {
	unlock := s.lockBookAndLoan(isbn)
	defer unlock()

	if _, err := s.books.GetBook(ctx, isbn); err != nil {
		return err
	}
	if err := s.checkNotLoaned(ctx, isbn); err != nil {
		return err
	}
	if err := s.books.DeleteBook(ctx, isbn); err != nil {
		return err
	}
	if err := s.covers.Delete(isbn); err != nil {
		return fmt.Errorf("book %s deleted but its cover remains: %w", isbn, err)
	}

	s.logger.Info("Book deleted", zap.String("isbn", isbn))
	return nil
}

// lockBookAndLoan takes the book lock and then the loan lock of isbn, so
// that no checkout can start while the record changes
func (s *Service) lockBookAndLoan(isbn string) func() {
	unlockBook := s.locks.Lock("book:" + isbn)
	unlockLoan := s.locks.Lock("loan:" + isbn)
	return func() {
		unlockLoan()
		unlockBook()
	}
}

func (s *Service) checkNotLoaned(ctx context.Context, isbn string) error {
	_, err := s.loans.GetLoan(ctx, isbn)
	if err == nil {
		return fmt.Errorf("book %s: %w", isbn, models.ErrBookOnLoan)
	}
	if errors.Is(err, models.ErrNoActiveLoan) {
		return nil
	}
	return err
}

// Import decodes and validates the whole payload, then upserts every book
// in one transaction. Books on loan are not replaced: the payload is
// rejected with models.ErrBookOnLoan. It returns the number of imported books.
// The locks of every ISBN are taken in sorted order.
func (s *Service) Import(ctx context.Context, format exchange.Format, data []byte) (int, error) {
	books, err := exchange.Decode(format, data)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]int, len(books))
	for i := range books {
		books[i] = trimBook(books[i])
		b := books[i]
		if !ValidISBN(b.ISBN) {
			return 0, fmt.Errorf("record %d: invalid ISBN %q: %w", i+1, b.ISBN, models.ErrFormat)
		}
		if b.Title == "" {
			return 0, fmt.Errorf("record %d: missing title: %w", i+1, models.ErrFormat)
		}
		if field := invalidField(b); field != "" {
			return 0, fmt.Errorf("record %d: %s contains control characters: %w", i+1, field, models.ErrFormat)
		}
		if first, ok := seen[b.ISBN]; ok {
			return 0, fmt.Errorf("records %d and %d share ISBN %s: %w", first, i+1, b.ISBN, models.ErrFormat)
		}
		seen[b.ISBN] = i + 1
	}

	isbns := make([]string, 0, len(seen))
	for isbn := range seen {
		isbns = append(isbns, isbn)
	}
	sort.Strings(isbns)
	for _, isbn := range isbns {
		unlock := s.lockBookAndLoan(isbn)
		defer unlock()
	}

	for _, isbn := range isbns {
		if err := s.checkNotLoaned(ctx, isbn); err != nil {
			return 0, fmt.Errorf("record %d: %w", seen[isbn], err)
		}
	}
	if err := s.books.ImportBooks(ctx, books); err != nil {
		return 0, err
	}

	s.logger.Info("Books imported", zap.String("format", string(format)), zap.Int("count", len(books)))
	return len(books), nil
}

// Export serializes the whole catalog in one format
func (s *Service) Export(ctx context.Context, format exchange.Format) ([]byte, error) {
	books, err := s.books.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	return exchange.Encode(format, books)
}

// ExportArchive returns a zip with the catalog in every format
func (s *Service) ExportArchive(ctx context.Context) ([]byte, error) {
	books, err := s.books.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	return exchange.Archive(ctx, books, s.now())
}

// PutCover stores the JPEG cover of an existing book
func (s *Service) PutCover(ctx context.Context, isbn string, data []byte) error {
	unlock := s.locks.Lock("book:" + isbn)
	defer unlock()

	if _, err := s.books.GetBook(ctx, isbn); err != nil {
		return err
	}
	if err := s.covers.Put(isbn, data); err != nil {
		return err
	}

	s.logger.Info("Cover stored", zap.String("isbn", isbn), zap.Int("bytes", len(data)))
	return nil
}

// Cover returns the stored cover of a book
func (s *Service) Cover(ctx context.Context, isbn string) ([]byte, error) {
	if _, err := s.books.GetBook(ctx, isbn); err != nil {
		return nil, err
	}
	return s.covers.Get(isbn)
}

func trimBook(b models.Book) models.Book {
	return models.Book{
		ISBN:      strings.TrimSpace(b.ISBN),
		Title:     strings.TrimSpace(b.Title),
		Author:    strings.TrimSpace(b.Author),
		Publisher: strings.TrimSpace(b.Publisher),
		Year:      b.Year,
	}
}
