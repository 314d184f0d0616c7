package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aspira/backend/internal/models"
)

// ProviderAttributes are the identity facts an external provider released.
type ProviderAttributes struct {
	Email       string
	DisplayName string
	// Subject is the provider's own user id. It is logged, not stored.
	Subject string
}

// Reconciler maps external identities onto local accounts, creating an
// account on first login and refusing emails owned by another provider.
type Reconciler struct {
	dir    UserDirectory
	tokens TokenIssuer
	ttl    time.Duration
}

// NewReconciler constructs a Reconciler issuing tokens valid for ttl.
func NewReconciler(dir UserDirectory, tokens TokenIssuer, ttl time.Duration) *Reconciler {
	return &Reconciler{dir: dir, tokens: tokens, ttl: ttl}
}

// Reconcile returns the account bound to attrs.Email for provider, creating
// it when absent. The account is returned unchanged on later logins through
// the same provider. An email owned by any other provider, including local
// accounts, fails with ErrProviderMismatch and nothing is written.
// Local accounts are created only by AuthService.Register; provider must
// name an external provider, otherwise ErrInvalidProvider is returned.
func (r *Reconciler) Reconcile(ctx context.Context, provider string, attrs ProviderAttributes) (*models.User, error) {
	if provider == "" || provider == models.LocalProvider {
		return nil, ErrInvalidProvider
	}
	if strings.TrimSpace(attrs.Email) == "" {
		return nil, ErrMissingProviderEmail
	}

	existing, err := r.dir.FindByEmail(ctx, attrs.Email)
	switch {
	case err == nil:
		if existing.AuthProvider != provider {
			return nil, ErrProviderMismatch
		}
		return existing, nil
	case !errors.Is(err, models.ErrUserNotFound):
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	local := LocalPart(attrs.Email)
	name := strings.TrimSpace(attrs.DisplayName)
	if name == "" {
		name = local
	}

	user, err := r.dir.Save(ctx, &models.User{
		Username:     usernameFrom(local),
		Email:        attrs.Email,
		Name:         name,
		AuthProvider: provider,
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateUsername) || errors.Is(err, models.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login reconciles attrs and issues a session token for the resulting account.
func (r *Reconciler) Login(ctx context.Context, provider string, attrs ProviderAttributes) (*LoginResult, error) {
	user, err := r.Reconcile(ctx, provider, attrs)
	if err != nil {
		return nil, err
	}
	res, err := issueFor(r.tokens, r.ttl, user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return res, nil
}

// MaxUsernameBytes bounds usernames derived from external emails to the
// width of the users.username column.
const MaxUsernameBytes = 50

// usernameFrom cuts local to at most MaxUsernameBytes without splitting a
// UTF-8 sequence.
func usernameFrom(local string) string {
	if len(local) <= MaxUsernameBytes {
		return local
	}
	cut := MaxUsernameBytes
	for cut > 0 && !utf8.RuneStart(local[cut]) {
		cut--
	}
	return local[:cut]
}

// LocalPart returns the portion of email before the last "@", or the whole
// string when there is none.
func LocalPart(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
