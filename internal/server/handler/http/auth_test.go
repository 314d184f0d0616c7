package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aspira/backend/internal/models"
	"github.com/aspira/backend/internal/service"
	"github.com/aspira/backend/internal/token"
)

// fakeAuthService implements AuthService for testing.
type fakeAuthService struct {
	AuthenticateFunc func(ctx context.Context, email, password string) (*service.LoginResult, error)
	RegisterFunc     func(ctx context.Context, in service.RegisterInput) (*models.User, error)
}

func (f *fakeAuthService) Authenticate(ctx context.Context, email, password string) (*service.LoginResult, error) {
	return f.AuthenticateFunc(ctx, email, password)
}

func (f *fakeAuthService) Register(ctx context.Context, in service.RegisterInput) (*models.User, error) {
	return f.RegisterFunc(ctx, in)
}

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func loginResult(userID string) *service.LoginResult {
	return &service.LoginResult{
		Token: token.SessionToken{
			Value:     "signed.token.value",
			Subject:   userID,
			IssuedAt:  fixedNow,
			ExpiresAt: fixedNow.Add(24 * time.Hour),
		},
		User: &models.User{ID: userID},
	}
}

func doJSON(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h(rec, req)
	return rec
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		authenticate   func(ctx context.Context, email, password string) (*service.LoginResult, error)
		expectedCode   int
		expectedSubstr string
	}{
		{
			name:           "invalid JSON",
			body:           `not a json`,
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid request",
		},
		{
			name:           "missing password",
			body:           `{"email":"bob@x.com"}`,
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid password",
		},
		{
			name: "invalid credentials",
			body: `{"email":"bob@x.com","password":"wrong"}`,
			authenticate: func(context.Context, string, string) (*service.LoginResult, error) {
				return nil, service.ErrInvalidCredentials
			},
			expectedCode:   http.StatusUnauthorized,
			expectedSubstr: "Invalid email or password",
		},
		{
			name: "directory failure is not leaked",
			body: `{"email":"bob@x.com","password":"secret123"}`,
			authenticate: func(context.Context, string, string) (*service.LoginResult, error) {
				return nil, errors.New("pq: connection refused")
			},
			expectedCode:   http.StatusInternalServerError,
			expectedSubstr: "internal error",
		},
		{
			name: "success",
			body: `{"email":"bob@x.com","password":"secret123"}`,
			authenticate: func(_ context.Context, email, password string) (*service.LoginResult, error) {
				if email != "bob@x.com" || password != "secret123" {
					t.Errorf("Authenticate(%q, %q)", email, password)
				}
				return loginResult("u-1"), nil
			},
			expectedCode:   http.StatusOK,
			expectedSubstr: `"token":"signed.token.value"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &AuthHandler{AuthService: &fakeAuthService{AuthenticateFunc: tt.authenticate}}
			rec := doJSON(h.Login, http.MethodPost, "/api/auth/login", tt.body)

			if rec.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedCode, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "connection refused") {
				t.Errorf("internal error leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestAuthHandler_LoginResponseShape(t *testing.T) {
	h := &AuthHandler{AuthService: &fakeAuthService{
		AuthenticateFunc: func(context.Context, string, string) (*service.LoginResult, error) {
			return loginResult("u-1"), nil
		},
	}}
	rec := doJSON(h.Login, http.MethodPost, "/api/auth/login", `{"email":"bob@x.com","password":"secret123"}`)

	var got loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Token != "signed.token.value" || got.TokenType != "Bearer" || got.UserID != "u-1" {
		t.Errorf("unexpected response: %+v", got)
	}
	if !got.ExpiresAt.Equal(fixedNow.Add(24 * time.Hour)) {
		t.Errorf("ExpiresAt = %v; want %v", got.ExpiresAt, fixedNow.Add(24*time.Hour))
	}
}

func TestAuthHandler_Register(t *testing.T) {
	created := &models.User{
		ID:           "u-1",
		Username:     "bob",
		Email:        "bob@x.com",
		Name:         "bob",
		PasswordHash: "$2a$10$secret",
		AuthProvider: models.LocalProvider,
		CreatedAt:    fixedNow,
	}

	tests := []struct {
		name           string
		body           string
		register       func(ctx context.Context, in service.RegisterInput) (*models.User, error)
		expectedCode   int
		expectedSubstr string
	}{
		{
			name:           "invalid JSON",
			body:           `{`,
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid request",
		},
		{
			name:           "short username",
			body:           `{"username":"bo","email":"bob@x.com","password":"secret123"}`,
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid username",
		},
		{
			name:           "bad email",
			body:           `{"username":"bob","email":"not-an-email","password":"secret123"}`,
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid email",
		},
		{
			name:           "short password",
			body:           `{"username":"bob","email":"bob@x.com","password":"short"}`,
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid password",
		},
		{
			name:           "future birthday",
			body:           `{"username":"bob","email":"bob@x.com","password":"secret123","birthday":"2030-01-01"}`,
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "birthday must be in the past",
		},
		{
			name: "duplicate email",
			body: `{"username":"bob2","email":"bob@x.com","password":"secret123"}`,
			register: func(context.Context, service.RegisterInput) (*models.User, error) {
				return nil, models.ErrDuplicateEmail
			},
			expectedCode:   http.StatusConflict,
			expectedSubstr: "Email already exists",
		},
		{
			name: "duplicate username",
			body: `{"username":"bob","email":"bob2@x.com","password":"secret123"}`,
			register: func(context.Context, service.RegisterInput) (*models.User, error) {
				return nil, models.ErrDuplicateUsername
			},
			expectedCode:   http.StatusConflict,
			expectedSubstr: "Username already exists",
		},
		{
			name: "created",
			body: `{"username":"bob","email":"bob@x.com","password":"secret123","birthday":"1990-05-17"}`,
			register: func(_ context.Context, in service.RegisterInput) (*models.User, error) {
				if in.Birthday == nil || in.Birthday.Format(dateLayout) != "1990-05-17" {
					t.Errorf("Birthday = %v; want 1990-05-17", in.Birthday)
				}
				return created, nil
			},
			expectedCode:   http.StatusCreated,
			expectedSubstr: `"authProvider":"local"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &AuthHandler{
				AuthService: &fakeAuthService{RegisterFunc: tt.register},
				Now:         func() time.Time { return fixedNow },
			}
			rec := doJSON(h.Register, http.MethodPost, "/api/users", tt.body)

			if rec.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedCode, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "$2a$") {
				t.Errorf("password hash leaked: %s", rec.Body.String())
			}
		})
	}
}
