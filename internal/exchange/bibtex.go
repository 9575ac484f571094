package exchange

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"biblioteca/internal/models"
)

func encodeBibTeX(books []models.Book) []byte {
	var b strings.Builder
	for i, book := range books {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "@book{%s,\n", bibKey(book.ISBN))
		fields := [][2]string{
			{"title", book.Title},
			{"author", book.Author},
			{"publisher", book.Publisher},
			{"year", yearString(book.Year)},
			{"isbn", book.ISBN},
		}
		first := true
		for _, f := range fields {
			if f[1] == "" && f[0] != "isbn" {
				continue
			}
			if !first {
				b.WriteString(",\n")
			}
			first = false
			fmt.Fprintf(&b, "  %s = {%s}", f[0], bibEscape(f[1]))
		}
		b.WriteString("\n}\n")
	}
	return []byte(b.String())
}

// bibKey derives a citation key from the ISBN characters that are safe in keys
func bibKey(isbn string) string {
	var b strings.Builder
	b.WriteString("isbn")
	for _, r := range isbn {
		if unicode.IsDigit(r) || r == 'X' || r == 'x' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func bibEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\\' || r == '{' || r == '}' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// bibParser reads @type{key, field = value, ...} entries. Text outside
// entries is ignored, as BibTeX treats it as a comment.
type bibParser struct {
	src []rune
	pos int
}

func decodeBibTeX(data []byte) ([]models.Book, error) {
	p := &bibParser{src: []rune(string(data))}
	books := []models.Book{}

	for {
		for p.pos < len(p.src) && p.src[p.pos] != '@' {
			p.pos++
		}
		if p.pos >= len(p.src) {
			break
		}
		p.pos++

		kind := strings.ToLower(p.ident())
		if kind == "" {
			return nil, p.errorf("missing entry type")
		}
		p.skipSpace()
		if !p.accept('{') {
			return nil, p.errorf("expected '{' after @%s", kind)
		}

		switch kind {
		case "comment", "preamble", "string":
			if _, err := p.braced(); err != nil {
				return nil, err
			}
			continue
		}

		fields, err := p.entryBody()
		if err != nil {
			return nil, err
		}
		book, err := bookFromFields(fields)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

// entryBody parses "key, name = value, ... }" after the opening brace
func (p *bibParser) entryBody() (map[string]string, error) {
	p.skipSpace()
	for p.pos < len(p.src) && p.src[p.pos] != ',' && p.src[p.pos] != '}' {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return nil, p.errorf("unterminated entry")
	}

	fields := make(map[string]string)
	for {
		p.skipSpace()
		if p.accept('}') {
			return fields, nil
		}
		if !p.accept(',') {
			return nil, p.errorf("expected ',' or '}'")
		}
		p.skipSpace()
		if p.accept('}') {
			return fields, nil
		}

		name := strings.ToLower(p.ident())
		if name == "" {
			return nil, p.errorf("expected field name")
		}
		p.skipSpace()
		if !p.accept('=') {
			return nil, p.errorf("expected '=' after %s", name)
		}
		p.skipSpace()

		value, err := p.value()
		if err != nil {
			return nil, err
		}
		fields[name] = value
	}
}

func (p *bibParser) value() (string, error) {
	if p.pos >= len(p.src) {
		return "", p.errorf("missing value")
	}
	switch p.src[p.pos] {
	case '{':
		p.pos++
		return p.braced()
	case '"':
		p.pos++
		return p.quoted()
	}
	start := p.pos
	for p.pos < len(p.src) && (unicode.IsLetter(p.src[p.pos]) || unicode.IsDigit(p.src[p.pos])) {
		p.pos++
	}
	if start == p.pos {
		return "", p.errorf("unexpected %q", p.src[p.pos])
	}
	return string(p.src[start:p.pos]), nil
}

// braced reads up to the brace closing an already consumed '{'.
// Inner grouping braces are dropped and backslash escapes resolved.
func (p *bibParser) braced() (string, error) {
	var b strings.Builder
	depth := 0
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		p.pos++
		switch r {
		case '\\':
			if p.pos >= len(p.src) {
				return "", p.errorf("dangling escape")
			}
			b.WriteRune(p.src[p.pos])
			p.pos++
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		default:
			b.WriteRune(r)
		}
	}
	return "", p.errorf("unbalanced braces")
}

func (p *bibParser) quoted() (string, error) {
	var b strings.Builder
	depth := 0
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		p.pos++
		switch {
		case r == '\\':
			if p.pos >= len(p.src) {
				return "", p.errorf("dangling escape")
			}
			b.WriteRune(p.src[p.pos])
			p.pos++
		case r == '{':
			depth++
		case r == '}':
			if depth == 0 {
				return "", p.errorf("unbalanced braces")
			}
			depth--
		case r == '"' && depth == 0:
			return b.String(), nil
		default:
			b.WriteRune(r)
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *bibParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			break
		}
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *bibParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *bibParser) accept(r rune) bool {
	if p.pos < len(p.src) && p.src[p.pos] == r {
		p.pos++
		return true
	}
	return false
}

func (p *bibParser) errorf(format string, args ...interface{}) error {
	line := 1
	for _, r := range p.src[:min(p.pos, len(p.src))] {
		if r == '\n' {
			line++
		}
	}
	return fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
}

func bookFromFields(fields map[string]string) (models.Book, error) {
	isbn := fields["isbn"]
	if isbn == "" {
		return models.Book{}, errors.New("entry without isbn field")
	}
	year, err := parseYear(fields["year"])
	if err != nil {
		return models.Book{}, err
	}
	return models.Book{
		ISBN:      isbn,
		Title:     fields["title"],
		Author:    fields["author"],
		Publisher: fields["publisher"],
		Year:      year,
	}, nil
}
