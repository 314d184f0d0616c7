package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aspira/backend/internal/metrics"
	"github.com/aspira/backend/internal/models"
	"go.uber.org/zap"
)

// TokenVerifier returns the subject of a valid session token.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// UserFinder resolves a token subject to a user.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type userContextKey struct{}

// WithUser returns a copy of ctx carrying user as the authenticated caller.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the authenticated caller, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*models.User)
	return u, ok && u != nil
}

// Outcomes recorded for each authenticated request.
const (
	outcomeResolved     = "resolved"
	outcomeNoToken      = "no_token"
	outcomeInvalidToken = "invalid_token"
	outcomeUnknownUser  = "unknown_user"
	outcomeLookupError  = "lookup_error"
)

// Authenticate resolves the caller from an "Authorization: Bearer" header.
// A verified token whose subject names an existing user attaches that user
// to the request context. Every other case continues anonymously; this
// stage never rejects a request.
func Authenticate(verifier TokenVerifier, finder UserFinder, log *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	log = orNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, outcome := resolve(r, verifier, finder, log)
			m.ObserveAuthentication(outcome)
			if user != nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolve(r *http.Request, verifier TokenVerifier, finder UserFinder, log *zap.Logger) (*models.User, string) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, outcomeNoToken
	}

	subject, err := verifier.Verify(raw)
	if err != nil {
		log.Debug("bearer token rejected", zap.String("path", r.URL.Path), zap.Error(err))
		return nil, outcomeInvalidToken
	}

	user, err := finder.FindByID(r.Context(), subject)
	if errors.Is(err, models.ErrUserNotFound) {
		log.Debug("token subject no longer exists", zap.String("subject", subject))
		return nil, outcomeUnknownUser
	}
	if err != nil {
		log.Error("resolve token subject", zap.String("subject", subject), zap.Error(err))
		return nil, outcomeLookupError
	}
	return user, outcomeResolved
}

// bearerToken extracts the credentials of a Bearer Authorization header.
// The scheme is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, raw, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
