// Package token issues and verifies stateless, HMAC-signed session tokens.
//
// A token is a compact HS256 JWT whose registered claims carry the subject,
// issued-at and expiry. Validity depends only on the signature and the
// expiry, so nothing is persisted and rotating the secret invalidates every
// outstanding token.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification and configuration errors.
var (
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token has expired")
	ErrMissingSecret         = errors.New("token signing secret is required")
	ErrEmptySubject          = errors.New("token subject is required")
	ErrInvalidTTL            = errors.New("token ttl must be positive")
)

// SessionToken is a bearer credential binding a subject to an expiry.
type SessionToken struct {
	// Value is the signed compact token handed to the client.
	Value string
	// Subject is the user identifier the token was issued for.
	Subject string
	// IssuedAt is the issue time, truncated to whole seconds.
	IssuedAt time.Time
	// ExpiresAt is the expiry time, truncated to whole seconds.
	ExpiresAt time.Time
}

// Codec creates and verifies session tokens with a process-wide secret.
// It is safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithIssuer sets the "iss" claim written into and required from tokens.
func WithIssuer(issuer string) Option {
	return func(c *Codec) { c.issuer = issuer }
}

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec returns a Codec signing with secret.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	c := &Codec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a token for subject that expires ttl from now. The expiry is
// rounded up to a whole second, so the token never expires early.
func (c *Codec) Issue(subject string, ttl time.Duration) (SessionToken, error) {
	if ttl <= 0 {
		return SessionToken{}, ErrInvalidTTL
	}
	now := c.now()
	exp := now.Add(ttl)
	if t := exp.Truncate(time.Second); !t.Equal(exp) {
		exp = t.Add(time.Second)
	}
	return c.IssueAt(subject, now, exp)
}

// IssueAt signs a token with explicit issue and expiry times.
// Identical inputs and secret always produce byte-identical output.
func (c *Codec) IssueAt(subject string, issuedAt, expiresAt time.Time) (SessionToken, error) {
	if subject == "" {
		return SessionToken{}, ErrEmptySubject
	}
	issuedAt = issuedAt.Truncate(time.Second)
	expiresAt = expiresAt.Truncate(time.Second)

	claims := jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return SessionToken{}, fmt.Errorf("sign token: %w", err)
	}

	return SessionToken{
		Value:     signed,
		Subject:   subject,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks the signature and expiry of raw and returns its subject unchanged.
func (c *Codec) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, c.keyFunc, c.parserOptions()...)
	if err != nil {
		return "", classify(err)
	}
	if claims.Subject == "" {
		return "", ErrTokenMalformed
	}
	return claims.Subject, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.secret, nil
}

func (c *Codec) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	return opts
}

// classify collapses jwt parser errors into the package's three failure kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenMalformed
	default:
		return ErrTokenSignatureInvalid
	}
}
