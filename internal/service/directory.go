// Package service implements local credential authentication, external
// identity reconciliation and account operations on top of a user directory.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/aspira/backend/internal/models"
	"github.com/aspira/backend/internal/token"
)

// Errors returned by the authentication services.
var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrMissingProviderEmail is returned when a provider did not release an email.
	ErrMissingProviderEmail = errors.New("identity provider did not supply an email")
	// ErrProviderMismatch is returned when the email belongs to an account of another provider.
	ErrProviderMismatch = errors.New("email is registered with a different sign-in method")
	// ErrInvalidProvider is returned for an empty or reserved provider name.
	ErrInvalidProvider = errors.New("invalid identity provider")
)

// UserDirectory looks up and persists user identities.
// Lookups return models.ErrUserNotFound when nothing matches; Save returns
// models.ErrDuplicateUsername or models.ErrDuplicateEmail on uniqueness violations.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, user *models.User) (*models.User, error)
}

// TokenIssuer issues session tokens for a subject.
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (token.SessionToken, error)
}

// LoginResult is a successful login: the signed token and the identity it names.
type LoginResult struct {
	Token token.SessionToken
	User  *models.User
}

func issueFor(tokens TokenIssuer, ttl time.Duration, user *models.User) (*LoginResult, error) {
	tok, err := tokens.Issue(user.ID, ttl)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: tok, User: user}, nil
}
