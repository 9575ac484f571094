package documents

import (
	"fmt"
	"strconv"
	"strings"

	"biblioteca/internal/models"
)

// Style is a bibliographic citation style
type Style string

const (
	APA      Style = "APA"
	MLA      Style = "MLA"
	Chicago  Style = "Chicago"
	Turabian Style = "Turabian"
	IEEE     Style = "IEEE"
)

// Styles lists every supported style
var Styles = []Style{APA, MLA, Chicago, Turabian, IEEE}

// ParseStyle resolves a style name case-insensitively
func ParseStyle(name string) (Style, error) {
	name = strings.TrimSpace(name)
	for _, s := range Styles {
		if strings.EqualFold(name, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown citation style %q: %w", name, models.ErrUnsupportedStyle)
}

// FormatCitation renders the reference of book in style. Titles are wrapped
// in asterisks for italics and an unknown year renders as n.d.
func FormatCitation(book models.Book, style Style) (string, error) {
	year := "n.d."
	if book.Year != 0 {
		year = strconv.Itoa(book.Year)
	}
	a, t, p := book.Author, book.Title, book.Publisher

	switch style {
	case APA:
		return fmt.Sprintf("%s (%s). *%s*. %s.", a, year, t, p), nil
	case MLA, Turabian:
		return fmt.Sprintf("%s. *%s*. %s, %s.", a, t, p, year), nil
	case Chicago:
		return fmt.Sprintf("%s. %s. *%s*. %s.", a, year, t, p), nil
	case IEEE:
		return fmt.Sprintf("%s, *%s*. %s, %s.", a, t, p, year), nil
	}
	return "", fmt.Errorf("unknown citation style %q: %w", style, models.ErrUnsupportedStyle)
}
