package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"biblioteca/internal/models"
)

// ValidISBN reports whether isbn has 10 or 13 digits once hyphens are
// removed. An ISBN-10 may end in X.
func ValidISBN(isbn string) bool {
	compact := strings.ReplaceAll(isbn, "-", "")
	if len(compact) != 10 && len(compact) != 13 {
		return false
	}
	if strings.HasPrefix(isbn, "-") || strings.HasSuffix(isbn, "-") || strings.Contains(isbn, "--") {
		return false
	}
	for i, r := range compact {
		if r >= '0' && r <= '9' {
			continue
		}
		if (r == 'X' || r == 'x') && i == 9 && len(compact) == 10 {
			continue
		}
		return false
	}
	return true
}

func checkISBN(isbn string) error {
	if !ValidISBN(isbn) {
		return fmt.Errorf("invalid ISBN %q: %w", isbn, models.ErrInvalidInput)
	}
	return nil
}

// ValidText reports whether s can travel through every exchange format.
// XML 1.0 cannot carry control characters other than tab, newline and
// carriage return, nor U+FFFE and U+FFFF.
func ValidText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r < 0x20, r == 0x7f:
			return false
		case r == 0xFFFE || r == 0xFFFF:
			return false
		}
	}
	return true
}

// invalidField names the first descriptive field of b that fails ValidText
func invalidField(b models.Book) string {
	fields := []struct{ name, value string }{
		{"title", b.Title},
		{"author", b.Author},
		{"publisher", b.Publisher},
	}
	for _, f := range fields {
		if !ValidText(f.value) {
			return f.name
		}
	}
	return ""
}

func checkText(b models.Book) error {
	if field := invalidField(b); field != "" {
		return fmt.Errorf("%s contains control characters: %w", field, models.ErrInvalidInput)
	}
	return nil
}
