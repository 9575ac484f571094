package auth

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"biblioteca/internal/models"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes
	maxPasswordBytes = 72
)

// ValidatePassword enforces the password policy: at least eight characters
// with upper and lower case letters, a digit and a symbol
func ValidatePassword(password string) error {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	if utf8.RuneCountInString(password) < minPasswordLength || !upper || !lower || !digit || !symbol {
		return fmt.Errorf("password needs at least %d characters with upper and lower case letters, a digit and a symbol: %w",
			minPasswordLength, models.ErrInvalidInput)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password longer than %d bytes: %w", maxPasswordBytes, models.ErrInvalidInput)
	}
	return nil
}

// HashPassword validates the password and returns its bcrypt hash
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
