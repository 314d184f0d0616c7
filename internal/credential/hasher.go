// Package credential wraps one-way password hashing and verification.
package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrPasswordTooLong is returned for passwords bcrypt would silently truncate.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	// ErrMismatch is returned when a password does not match the stored hash.
	ErrMismatch = errors.New("password does not match")
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = bcrypt.DefaultCost

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// Hasher hashes and verifies passwords.
type Hasher interface {
	// Hash returns a salted one-way hash of password.
	Hash(password string) (string, error)
	// Verify returns nil when password matches hash and ErrMismatch otherwise.
	Verify(hash, password string) error
}

// BcryptHasher implements Hasher with bcrypt. Each hash carries its own random salt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a BcryptHasher. Costs outside bcrypt's range fall back to DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash hashes password with the configured cost.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify compares password against hash in constant time.
// Malformed hashes are reported as ErrMismatch so callers cannot tell them apart.
func (h *BcryptHasher) Verify(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrMismatch
	}
	return nil
}
