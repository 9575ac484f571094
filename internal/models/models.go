package models

import "time"

// Role is the access level of a user
type Role string

const (
	RoleStandard      Role = "standard"
	RoleAdministrator Role = "administrator"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleAdministrator
}

// User represents a library member or administrator
type User struct {
	ID           string    `json:"id" xml:"id" yaml:"id" db:"id"`
	Name         string    `json:"name" xml:"name" yaml:"name" db:"name"`
	Surname1     string    `json:"surname1" xml:"surname1" yaml:"surname1" db:"surname1"`
	Surname2     string    `json:"surname2" xml:"surname2" yaml:"surname2" db:"surname2"`
	PasswordHash string    `json:"-" xml:"-" yaml:"-" db:"password_hash"`
	Role         Role      `json:"role" xml:"role" yaml:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" xml:"created_at" yaml:"created_at" db:"created_at"`
}

// IsAdministrator reports whether the user has the administrator role
func (u User) IsAdministrator() bool {
	return u.Role == RoleAdministrator
}

// FullName returns the name followed by both surnames
func (u User) FullName() string {
	name := u.Name
	for _, s := range []string{u.Surname1, u.Surname2} {
		if s != "" {
			name += " " + s
		}
	}
	return name
}

// Book represents a catalog record keyed by ISBN
type Book struct {
	ISBN      string `json:"isbn" xml:"isbn" yaml:"isbn" db:"isbn"`
	Title     string `json:"title" xml:"title" yaml:"title" db:"title"`
	Author    string `json:"author" xml:"author" yaml:"author" db:"author"`
	Publisher string `json:"publisher" xml:"publisher" yaml:"publisher" db:"publisher"`
	Year      int    `json:"year" xml:"year" yaml:"year" db:"year"`
}

// Complete reports whether every descriptive field is filled in
func (b Book) Complete() bool {
	return b.Title != "" && b.Author != "" && b.Publisher != "" && b.Year != 0
}

// Loan is an active checkout of a book by a user
type Loan struct {
	ISBN      string    `json:"isbn" xml:"isbn" yaml:"isbn" db:"isbn"`
	UserID    string    `json:"user_id" xml:"user_id" yaml:"user_id" db:"user_id"`
	StartedAt time.Time `json:"started_at" xml:"started_at" yaml:"started_at" db:"started_at"`
}

// LoginRecord is one entry of the append-only login log
type LoginRecord struct {
	ID         string    `json:"id" xml:"id" yaml:"id" db:"id"`
	UserID     string    `json:"user_id" xml:"user_id" yaml:"user_id" db:"user_id"`
	LoggedAt   time.Time `json:"logged_at" xml:"logged_at" yaml:"logged_at" db:"logged_at"`
	RemoteAddr string    `json:"remote_addr" xml:"remote_addr" yaml:"remote_addr" db:"remote_addr"`
}

// Identity is the authenticated caller extracted from a token
type Identity struct {
	UserID    string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

// IsAdministrator reports whether the caller holds the administrator role
func (i Identity) IsAdministrator() bool {
	return i.Role == RoleAdministrator
}

// Token is a signed credential issued at login
type Token struct {
	Value     string    `json:"token" xml:"token" yaml:"token"`
	ExpiresAt time.Time `json:"expires_at" xml:"expires_at" yaml:"expires_at"`
}
