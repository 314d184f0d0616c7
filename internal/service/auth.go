package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aspira/backend/internal/credential"
	"github.com/aspira/backend/internal/models"
)

// RegisterInput is a local account registration request.
type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	Name       string
	Occupation string
	Birthday   *time.Time
}

// AuthService authenticates local accounts and registers new ones.
type AuthService struct {
	dir    UserDirectory
	hasher credential.Hasher
	tokens TokenIssuer
	ttl    time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs an AuthService issuing tokens valid for ttl.
func NewAuthService(dir UserDirectory, hasher credential.Hasher, tokens TokenIssuer, ttl time.Duration) *AuthService {
	return &AuthService{dir: dir, hasher: hasher, tokens: tokens, ttl: ttl}
}

// Authenticate verifies email and password and issues a token whose subject
// is the user's ID. Unknown emails, accounts of external providers and wrong
// passwords all return ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.dir.FindByEmail(ctx, email)
	if errors.Is(err, models.ErrUserNotFound) {
		s.burnVerify(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	if !user.IsLocal() || user.PasswordHash == "" {
		s.burnVerify(password)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	res, err := issueFor(s.tokens, s.ttl, user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return res, nil
}

// burnVerify spends one hash comparison so that failures for unknown or
// external accounts take as long as a wrong password.
func (s *AuthService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("aspira-timing-equaliser")
	})
	if s.dummyHash != "" {
		_ = s.hasher.Verify(s.dummyHash, password)
	}
}

// Register creates a local account. Username and email uniqueness are
// checked before anything is written; a violation reported by the
// directory on save is returned as the same error.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	exists, err := s.dir.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, models.ErrDuplicateUsername
	}

	exists, err = s.dir.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, models.ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	name := in.Name
	if name == "" {
		name = in.Username
	}

	user, err := s.dir.Save(ctx, &models.User{
		Username:     in.Username,
		Email:        in.Email,
		Name:         name,
		PasswordHash: hash,
		AuthProvider: models.LocalProvider,
		Occupation:   in.Occupation,
		Birthday:     in.Birthday,
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateUsername) || errors.Is(err, models.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}
