package api

import (
	"encoding/xml"

	"biblioteca/internal/models"
)

// XML needs a single named root, so collections are wrapped for it

type userList struct {
	XMLName xml.Name      `xml:"users"`
	Users   []models.User `xml:"user"`
}

type bookList struct {
	XMLName xml.Name      `xml:"books"`
	Books   []models.Book `xml:"book"`
}

type loanList struct {
	XMLName xml.Name      `xml:"loans"`
	Loans   []models.Loan `xml:"loan"`
}

type loginList struct {
	XMLName xml.Name             `xml:"logins"`
	Logins  []models.LoginRecord `xml:"login"`
}

type citationView struct {
	XMLName  xml.Name `json:"-" xml:"citation" yaml:"-"`
	ISBN     string   `json:"isbn" xml:"isbn" yaml:"isbn"`
	Style    string   `json:"style" xml:"style" yaml:"style"`
	Citation string   `json:"citation" xml:"text" yaml:"citation"`
}

type citationList struct {
	XMLName   xml.Name       `xml:"citations"`
	Citations []citationView `xml:"citation"`
}

type importResult struct {
	XMLName  xml.Name `json:"-" xml:"import" yaml:"-"`
	Format   string   `json:"format" xml:"format" yaml:"format"`
	Imported int      `json:"imported" xml:"imported" yaml:"imported"`
}
