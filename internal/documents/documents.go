// Package documents renders member cards, book sheets, loan reports and
// citations from the current library state.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"biblioteca/internal/covers"
	"biblioteca/internal/models"
	"biblioteca/internal/storage"
)

const (
	reportCellLimit = 25
	reportColWidth  = 52.9
	reportRowHeight = 7.0
)

// Service reads the stores and produces documents; it never mutates state
type Service struct {
	users  storage.Users
	books  storage.Books
	loans  storage.Loans
	covers *covers.Store
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a document service
func NewService(users storage.Users, books storage.Books, loans storage.Loans, coverStore *covers.Store, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		books:  books,
		loans:  loans,
		covers: coverStore,
		now:    time.Now,
		logger: logger,
	}
}

// newPDF creates a document with a custom page size in millimetres
func (s *Service) newPDF(orientation string, size fpdf.SizeType, title string) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		Size:           size,
	})
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(s.now())
	pdf.SetTitle(title, true)
	pdf.SetCreator("biblioteca", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	return pdf
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// MemberCard renders the 8x5 cm card of a user
func (s *Service) MemberCard(ctx context.Context, userID string) ([]byte, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	pdf := s.newPDF("P", fpdf.SizeType{Wd: 80, Ht: 50}, "Carné "+user.ID)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	title := tr("Carné de Usuario")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Text((80-pdf.GetStringWidth(title))/2, 5, title)

	rows := []struct{ label, value string }{
		{"Número de socio:", user.ID},
		{"Nombre:", user.Name},
		{"Primer apellido:", user.Surname1},
		{"Segundo apellido:", user.Surname2},
	}
	for i, r := range rows {
		y := 10 + float64(i)*10
		pdf.SetFont("Helvetica", "B", 8)
		pdf.Text(10, y, tr(r.label))
		pdf.SetFont("Helvetica", "", 8)
		pdf.Text(10, y+5, tr(r.value))
	}
	return output(pdf)
}

// BookSheet renders the 15x10 cm record of a book with its cover if any
func (s *Service) BookSheet(ctx context.Context, isbn string) ([]byte, error) {
	book, err := s.books.GetBook(ctx, isbn)
	if err != nil {
		return nil, err
	}

	pdf := s.newPDF("P", fpdf.SizeType{Wd: 150, Ht: 100}, "Ficha "+book.ISBN)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	year := ""
	if book.Year != 0 {
		year = strconv.Itoa(book.Year)
	}
	rows := []struct{ label, value string }{
		{"Título:", book.Title},
		{"Autor:", book.Author},
		{"Editorial:", book.Publisher},
		{"Año:", year},
		{"ISBN:", book.ISBN},
	}
	for i, r := range rows {
		y := 10 + float64(i)*10
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Text(10, y, tr(r.label))
		pdf.SetFont("Helvetica", "", 10)
		pdf.Text(30, y, tr(r.value))
	}

	cover, err := s.covers.Get(book.ISBN)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		opts := fpdf.ImageOptions{ImageType: "JPG"}
		pdf.RegisterImageOptionsReader("cover", opts, bytes.NewReader(cover))
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Text(10, 60, tr("Carátula:"))
		pdf.ImageOptions("cover", 30, 55, 30, 40, false, opts, 0, "")
	}
	return output(pdf)
}

// LoanReport renders every active loan as a table on landscape A4 pages
func (s *Service) LoanReport(ctx context.Context) ([]byte, error) {
	loans, err := s.loans.ListLoans(ctx)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(s.now())
	pdf.SetTitle("Informe de préstamos", true)
	pdf.SetCreator("biblioteca", true)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	left, top := 16.0, 15.0
	_, pageHeight := pdf.GetPageSize()
	header := []string{"ISBN", "Título", "Usuario", "Nombre", "Fecha"}

	newPage := func() {
		pdf.AddPage()
		pdf.SetXY(left, top)
		pdf.SetFont("Helvetica", "B", 10)
		for _, h := range header {
			pdf.CellFormat(reportColWidth, reportRowHeight, tr(h), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(reportRowHeight)
		pdf.SetFont("Helvetica", "", 10)
	}
	newPage()

	for _, loan := range loans {
		title, name, err := s.loanNames(ctx, loan)
		if err != nil {
			return nil, err
		}
		if pdf.GetY()+reportRowHeight > pageHeight-top {
			newPage()
		}
		pdf.SetX(left)
		cells := []string{
			loan.ISBN,
			truncate(title, reportCellLimit),
			loan.UserID,
			truncate(name, reportCellLimit),
			loan.StartedAt.Format("02/01/2006"),
		}
		for _, c := range cells {
			pdf.CellFormat(reportColWidth, reportRowHeight, tr(c), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(reportRowHeight)
	}

	s.logger.Debug("Loan report rendered", zap.Int("loans", len(loans)))
	return output(pdf)
}

// loanNames resolves the book title and borrower name of a loan
func (s *Service) loanNames(ctx context.Context, loan models.Loan) (string, string, error) {
	book, err := s.books.GetBook(ctx, loan.ISBN)
	if err != nil {
		return "", "", err
	}
	user, err := s.users.GetUser(ctx, loan.UserID)
	if err != nil {
		return "", "", err
	}
	return book.Title, user.FullName(), nil
}

// Citation renders the reference of a book in style
func (s *Service) Citation(ctx context.Context, isbn string, style Style) (string, error) {
	book, err := s.books.GetBook(ctx, isbn)
	if err != nil {
		return "", err
	}
	return FormatCitation(*book, style)
}

// truncate keeps the first limit characters and marks the cut with "..."
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) < limit {
		return s
	}
	return string(r[:limit]) + "..."
}

// Citations renders the reference of a book in every style
func (s *Service) Citations(ctx context.Context, isbn string) (map[Style]string, error) {
	book, err := s.books.GetBook(ctx, isbn)
	if err != nil {
		return nil, err
	}
	out := make(map[Style]string, len(Styles))
	for _, style := range Styles {
		text, err := FormatCitation(*book, style)
		if err != nil {
			return nil, err
		}
		out[style] = text
	}
	return out, nil
}
