package models

import "errors"

// Error is a domain error kind with a stable machine-readable code.
// Kinds form a chain through parent so that, for example, ErrBookNotFound
// also matches ErrNotFound with errors.Is.
type Error struct {
	Code    string
	message string
	parent  error
}

func newKind(code, message string, parent error) *Error {
	return &Error{Code: code, message: message, parent: parent}
}

func (e *Error) Error() string { return e.message }

func (e *Error) Unwrap() error { return e.parent }

var (
	ErrInvalidCredentials = newKind("INVALID_CREDENTIALS", "invalid credentials", nil)
	ErrUnauthenticated    = newKind("UNAUTHENTICATED", "authentication required", nil)
	ErrForbidden          = newKind("FORBIDDEN", "operation not allowed", nil)

	ErrNotFound     = newKind("NOT_FOUND", "not found", nil)
	ErrBookNotFound = newKind("BOOK_NOT_FOUND", "book not found", ErrNotFound)
	ErrUserNotFound = newKind("USER_NOT_FOUND", "user not found", ErrNotFound)
	ErrNoActiveLoan = newKind("NO_ACTIVE_LOAN", "book is not on loan", ErrNotFound)

	ErrConflict          = newKind("CONFLICT", "conflict", nil)
	ErrDuplicateISBN     = newKind("DUPLICATE_ISBN", "book already exists", ErrConflict)
	ErrDuplicateUser     = newKind("DUPLICATE_USER", "user already exists", ErrConflict)
	ErrAlreadyLoaned     = newKind("ALREADY_LOANED", "book is already on loan", ErrConflict)
	ErrBookOnLoan        = newKind("BOOK_ON_LOAN", "book is on loan", ErrConflict)
	ErrUserHasLoans      = newKind("USER_HAS_LOANS", "user has books on loan", ErrConflict)
	ErrLastAdministrator = newKind("LAST_ADMINISTRATOR", "at least one administrator must remain", ErrConflict)

	ErrInvalidInput     = newKind("INVALID_INPUT", "invalid input", nil)
	ErrFormat           = newKind("FORMAT_ERROR", "malformed document", ErrInvalidInput)
	ErrUnsupportedStyle = newKind("UNSUPPORTED_STYLE", "unsupported citation style", ErrInvalidInput)

	ErrExternalLookupUnavailable = newKind("EXTERNAL_LOOKUP_UNAVAILABLE", "external ISBN lookup unavailable", nil)
)

// CodeOf returns the machine code of the most specific kind wrapped by err,
// or "INTERNAL" when err carries no domain kind.
func CodeOf(err error) string {
	var kind *Error
	if errors.As(err, &kind) {
		return kind.Code
	}
	return "INTERNAL"
}
