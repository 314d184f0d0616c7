package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aspira/backend/internal/middleware"
	"github.com/aspira/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserService defines the account operations required by UsersHandler.
type UserService interface {
	Get(ctx context.Context, id string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User, p models.Profile) (*models.User, error)
	Delete(ctx context.Context, user *models.User) error
}

// UsersHandler serves account endpoints. Routes under /api/users/me act on
// the caller resolved by the authentication middleware.
type UsersHandler struct {
	Users UserService
	Log   *zap.Logger
	// Now is the clock used to validate birthdays. Defaults to time.Now.
	Now func() time.Time
}

// ProfileRequest is the JSON payload of a profile update. Omitted fields
// are left unchanged.
type ProfileRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=2,max=100"`
	Occupation *string `json:"occupation" validate:"omitempty,max=100"`
	Birthday   *string `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
}

// Me returns the caller's account.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}

// Get returns the public view of the account with the id in the path.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, newPublicUserView(user))
}

// EmailExists reports whether the email in the query is registered.
func (h *UsersHandler) EmailExists(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	exists, err := h.Users.EmailExists(r.Context(), email)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// UpdateProfile changes the caller's display name, occupation or birthday.
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := models.Profile{Name: req.Name, Occupation: req.Occupation}
	if req.Birthday != nil {
		now := time.Now()
		if h.Now != nil {
			now = h.Now()
		}
		b, err := parsePastDate(*req.Birthday, now)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p.Birthday = b
	}

	updated, err := h.Users.UpdateProfile(r.Context(), user, p)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(updated))
}

// DeleteMe removes the caller's account.
func (h *UsersHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.Users.Delete(r.Context(), user); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	logger(h.Log).Info("user deleted", zap.String("user_id", user.ID))
	w.WriteHeader(http.StatusNoContent)
}

// caller returns the resolved user. Routes using it are guarded by the
// policy, so a missing user means the router was misconfigured.
func (h *UsersHandler) caller(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, middleware.ErrAuthorizationDenied.Error())
		return nil, false
	}
	return user, true
}
