package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/aspira/backend/internal/models"
	"github.com/aspira/backend/internal/service"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// userView is the JSON form of an account. It never carries the password hash.
type userView struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name,omitempty"`
	AuthProvider string    `json:"authProvider"`
	Occupation   string    `json:"occupation,omitempty"`
	Birthday     string    `json:"birthday,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newUserView(u *models.User) userView {
	v := userView{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Name:         u.Name,
		AuthProvider: u.AuthProvider,
		Occupation:   u.Occupation,
		CreatedAt:    u.CreatedAt,
	}
	if u.Birthday != nil {
		v.Birthday = u.Birthday.Format(dateLayout)
	}
	return v
}

// newPublicUserView omits the email of accounts other than the caller's.
func newPublicUserView(u *models.User) userView {
	v := newUserView(u)
	v.Email = ""
	return v
}

type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    string    `json:"userId"`
}

func newLoginResponse(res *service.LoginResult) loginResponse {
	return loginResponse{
		Token:     res.Token.Value,
		TokenType: "Bearer",
		ExpiresAt: res.Token.ExpiresAt.UTC(),
		UserID:    res.User.ID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service and directory errors to responses.
// Unrecognised errors are logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, models.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, "Username already exists")
	case errors.Is(err, models.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "Email already exists")
	case errors.Is(err, service.ErrMissingProviderEmail):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrProviderMismatch):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		logger(log).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeAndValidate reads a JSON body into dst and applies its validate tags.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s", verrs[0].Field())
		}
		return errors.New("invalid request")
	}
	return nil
}

// parsePastDate parses a yyyy-mm-dd date that must lie before today.
func parsePastDate(s string, now time.Time) (*time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, errors.New("invalid birthday")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !d.Before(today) {
		return nil, errors.New("birthday must be in the past")
	}
	return &d, nil
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
