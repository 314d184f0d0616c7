// Package http provides the HTTP handlers for local and external login,
// registration and account endpoints, and the router that places them
// behind the authentication pipeline.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aspira/backend/internal/metrics"
	"github.com/aspira/backend/internal/models"
	"github.com/aspira/backend/internal/service"
	"go.uber.org/zap"
)

// AuthService defines the local account operations required by AuthHandler.
type AuthService interface {
	// Authenticate checks an email and password and issues a session token.
	Authenticate(ctx context.Context, email, password string) (*service.LoginResult, error)
	// Register creates a local account.
	Register(ctx context.Context, in service.RegisterInput) (*models.User, error)
}

// AuthHandler handles credential login and registration.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	Log         *zap.Logger
	Metrics     *metrics.Metrics
	// Now is the clock used to validate birthdays. Defaults to time.Now.
	Now func() time.Time
}

// LoginRequest represents the JSON payload for credential login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the JSON payload for local registration.
type RegisterRequest struct {
	Name       string `json:"name" validate:"omitempty,min=2,max=100"`
	Username   string `json:"username" validate:"required,min=3,max=50"`
	Email      string `json:"email" validate:"required,email,max=100"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Occupation string `json:"occupation" validate:"omitempty,max=100"`
	Birthday   string `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
}

// Login exchanges an email and password for a bearer token.
// Every credential failure yields the same 401 response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.AuthService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		outcome := "error"
		if errors.Is(err, service.ErrInvalidCredentials) {
			outcome = "invalid_credentials"
		}
		h.Metrics.ObserveLogin("password", outcome)
		writeServiceError(w, h.Log, err)
		return
	}

	h.Metrics.ObserveLogin("password", "success")
	writeJSON(w, http.StatusOK, newLoginResponse(res))
}

// Register creates a local account and returns it with 201.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := service.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Occupation: req.Occupation,
	}
	if req.Birthday != "" {
		b, err := parsePastDate(req.Birthday, h.now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.Birthday = b
	}

	user, err := h.AuthService.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}

	logger(h.Log).Info("user registered", zap.String("user_id", user.ID))
	writeJSON(w, http.StatusCreated, newUserView(user))
}

func (h *AuthHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
