// Package exchange converts catalog records to and from the supported
// interchange formats.
package exchange

import (
	"fmt"
	"strings"

	"biblioteca/internal/models"
)

// Format is a catalog interchange format
type Format string

const (
	JSON   Format = "json"
	CSV    Format = "csv"
	XML    Format = "xml"
	BibTeX Format = "bibtex"
)

// Formats lists every supported format in archive order
var Formats = []Format{JSON, CSV, XML, BibTeX}

// ParseFormat resolves a format name case-insensitively
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "xml":
		return XML, nil
	case "bibtex", "bib":
		return BibTeX, nil
	}
	return "", fmt.Errorf("unknown format %q: %w", name, models.ErrFormat)
}

// Extension returns the file extension used for the format
func (f Format) Extension() string {
	if f == BibTeX {
		return "bib"
	}
	return string(f)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case CSV:
		return "text/csv; charset=utf-8"
	case XML:
		return "application/xml"
	case BibTeX:
		return "application/x-bibtex; charset=utf-8"
	}
	return "application/octet-stream"
}

// Encode serializes books in the given format
func Encode(f Format, books []models.Book) ([]byte, error) {
	switch f {
	case JSON:
		return encodeJSON(books)
	case CSV:
		return encodeCSV(books)
	case XML:
		return encodeXML(books)
	case BibTeX:
		return encodeBibTeX(books), nil
	}
	return nil, fmt.Errorf("unknown format %q: %w", f, models.ErrFormat)
}

// Decode parses books from data. Any syntax error is reported as
// models.ErrFormat.
func Decode(f Format, data []byte) ([]models.Book, error) {
	var (
		books []models.Book
		err   error
	)
	switch f {
	case JSON:
		books, err = decodeJSON(data)
	case CSV:
		books, err = decodeCSV(data)
	case XML:
		books, err = decodeXML(data)
	case BibTeX:
		books, err = decodeBibTeX(data)
	default:
		return nil, fmt.Errorf("unknown format %q: %w", f, models.ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s document: %v: %w", f, err, models.ErrFormat)
	}
	return books, nil
}
