package service

import (
	"context"
	"fmt"

	"github.com/aspira/backend/internal/models"
)

// UserStore is a UserDirectory that can also delete accounts.
type UserStore interface {
	UserDirectory
	Delete(ctx context.Context, id string) error
}

// UserService serves account operations for already-authenticated callers.
// The acting user is always passed in explicitly.
type UserService struct {
	store UserStore
}

// NewUserService constructs a UserService.
func NewUserService(store UserStore) *UserService {
	return &UserService{store: store}
}

// Get returns the user with the given id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.store.FindByID(ctx, id)
}

// EmailExists reports whether an account uses email.
func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.store.ExistsByEmail(ctx, email)
}

// UpdateProfile applies the non-nil fields of p to user and saves it.
// Identity fields (username, email, provider, password) are never touched.
func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, p models.Profile) (*models.User, error) {
	updated := *user
	if p.Name != nil {
		updated.Name = *p.Name
	}
	if p.Occupation != nil {
		updated.Occupation = *p.Occupation
	}
	if p.Birthday != nil {
		b := *p.Birthday
		updated.Birthday = &b
	}
	saved, err := s.store.Save(ctx, &updated)
	if err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return saved, nil
}

// Delete removes user's account. Tokens already issued stop resolving.
func (s *UserService) Delete(ctx context.Context, user *models.User) error {
	return s.store.Delete(ctx, user.ID)
}
