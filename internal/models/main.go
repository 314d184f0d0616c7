// Package models defines the core data structures for user identities.
package models

import (
	"errors"
	"time"
)

// LocalProvider is the AuthProvider tag of accounts that own an email/password pair.
const LocalProvider = "local"

// Errors returned by user directory implementations.
var (
	// ErrUserNotFound is returned when no user matches a lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUsername is returned when the username is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already exists")
)

// User represents an application account, local or provisioned by an
// external identity provider.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// Username is the unique login name.
	Username string
	// Email is the unique email address, compared exactly as stored.
	Email string
	// Name is the optional display name.
	Name string
	// PasswordHash is the bcrypt hash of the password. Empty unless AuthProvider is LocalProvider.
	PasswordHash string
	// AuthProvider is LocalProvider or the name of the external identity provider.
	AuthProvider string
	// Occupation is an optional profile field.
	Occupation string
	// Birthday is an optional profile field.
	Birthday *time.Time
	// CreatedAt is set by the directory on first save.
	CreatedAt time.Time
}

// IsLocal reports whether the account authenticates with a local password.
func (u *User) IsLocal() bool {
	return u.AuthProvider == LocalProvider
}

// Profile holds the mutable profile fields of a user.
// Nil fields are left unchanged on update.
type Profile struct {
	Name       *string
	Occupation *string
	Birthday   *time.Time
}
