package exchange

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"biblioteca/internal/models"
)

var csvHeader = []string{"isbn", "title", "author", "publisher", "year"}

func encodeJSON(books []models.Book) ([]byte, error) {
	if books == nil {
		books = []models.Book{}
	}
	return json.MarshalIndent(books, "", "  ")
}

func decodeJSON(data []byte) ([]models.Book, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var books []models.Book
	if err := dec.Decode(&books); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON array")
	}
	return books, nil
}

func encodeCSV(books []models.Book) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, b := range books {
		if err := w.Write([]string{b.ISBN, b.Title, b.Author, b.Publisher, yearString(b.Year)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func decodeCSV(data []byte) ([]models.Book, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(csvHeader)

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.New("missing header")
	}
	if err != nil {
		return nil, err
	}
	for i, name := range csvHeader {
		if strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))) != name {
			return nil, fmt.Errorf("unexpected column %q, want %q", header[i], name)
		}
	}

	books := []models.Book{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		year, err := parseYear(record[4])
		if err != nil {
			return nil, err
		}
		books = append(books, models.Book{
			ISBN:      record[0],
			Title:     record[1],
			Author:    record[2],
			Publisher: record[3],
			Year:      year,
		})
	}
	return books, nil
}

type xmlLibrary struct {
	XMLName xml.Name  `xml:"library"`
	Books   []xmlBook `xml:"book"`
}

type xmlBook struct {
	ISBN      string `xml:"isbn"`
	Title     string `xml:"title"`
	Author    string `xml:"author"`
	Publisher string `xml:"publisher"`
	Year      string `xml:"year"`
}

// encodeXML writes XML 1.0, which cannot carry most control characters;
// the catalog rejects them on input so exported text survives a round trip.
func encodeXML(books []models.Book) ([]byte, error) {
	doc := xmlLibrary{Books: make([]xmlBook, 0, len(books))}
	for _, b := range books {
		doc.Books = append(doc.Books, xmlBook{
			ISBN:      b.ISBN,
			Title:     b.Title,
			Author:    b.Author,
			Publisher: b.Publisher,
			Year:      yearString(b.Year),
		})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func decodeXML(data []byte) ([]models.Book, error) {
	var doc xmlLibrary
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	books := make([]models.Book, 0, len(doc.Books))
	for _, b := range doc.Books {
		year, err := parseYear(b.Year)
		if err != nil {
			return nil, err
		}
		books = append(books, models.Book{
			ISBN:      b.ISBN,
			Title:     b.Title,
			Author:    b.Author,
			Publisher: b.Publisher,
			Year:      year,
		})
	}
	return books, nil
}

// yearString renders an unknown year as an empty field
func yearString(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}

func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 0 {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return year, nil
}
