package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/aspira/backend/internal/models"
	"github.com/aspira/backend/internal/token"
)

// memDirectory is an in-memory UserStore enforcing username and email uniqueness.
type memDirectory struct {
	mu     sync.Mutex
	users  map[string]*models.User
	nextID int
	saves  int

	// findErr, when set, is returned by every lookup.
	findErr error
}

func newMemDirectory() *memDirectory {
	return &memDirectory{users: make(map[string]*models.User)}
}

func (d *memDirectory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return nil, d.findErr
	}
	for _, u := range d.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (d *memDirectory) FindByID(_ context.Context, id string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return nil, d.findErr
	}
	u, ok := d.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (d *memDirectory) ExistsByUsername(_ context.Context, username string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (d *memDirectory) ExistsByEmail(_ context.Context, email string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (d *memDirectory) Save(_ context.Context, user *models.User) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, u := range d.users {
		if id == user.ID {
			continue
		}
		if u.Username == user.Username {
			return nil, models.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return nil, models.ErrDuplicateEmail
		}
	}
	saved := *user
	if saved.ID == "" {
		d.nextID++
		saved.ID = "user-" + strconv.Itoa(d.nextID)
		saved.CreatedAt = time.Unix(1_700_000_000, 0)
	}
	d.users[saved.ID] = &saved
	d.saves++
	c := saved
	return &c, nil
}

func (d *memDirectory) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[id]; !ok {
		return models.ErrUserNotFound
	}
	delete(d.users, id)
	return nil
}

func (d *memDirectory) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

// fakeHasher prefixes passwords instead of hashing them.
type fakeHasher struct {
	hashErr error
	verifys int
}

func (h *fakeHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + password, nil
}

func (h *fakeHasher) Verify(hash, password string) error {
	h.verifys++
	if hash != "hashed:"+password {
		return errMismatch
	}
	return nil
}

// mockIssuer records issued subjects.
type mockIssuer struct {
	IssueFunc func(subject string, ttl time.Duration) (token.SessionToken, error)
	subjects  []string
}

func (m *mockIssuer) Issue(subject string, ttl time.Duration) (token.SessionToken, error) {
	m.subjects = append(m.subjects, subject)
	if m.IssueFunc != nil {
		return m.IssueFunc(subject, ttl)
	}
	return token.SessionToken{Value: "tok-" + subject, Subject: subject}, nil
}
