package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/aspira/backend/internal/metrics"
	"github.com/aspira/backend/internal/oauth"
	"github.com/aspira/backend/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	stateCookieName = "__oauth_state"
	pkceCookieName  = "__oauth_pkce"
	flowCookieTTL   = 5 * time.Minute
	callbackPath    = "/login/oauth2/code/"
)

// Reconciler completes an external login for the identity a provider returned.
type Reconciler interface {
	Login(ctx context.Context, provider string, attrs service.ProviderAttributes) (*service.LoginResult, error)
}

// OAuthHandler runs the authorization code flow with PKCE against the
// registered providers and signs the caller in on return.
type OAuthHandler struct {
	Providers  *oauth.Registry
	Reconciler Reconciler
	// SuccessRedirectURL, when set, receives the token in its fragment
	// instead of a JSON body.
	SuccessRedirectURL string
	// SecureCookies marks the flow cookies Secure.
	SecureCookies bool
	Log           *zap.Logger
	Metrics       *metrics.Metrics
}

// Authorize starts a login with the provider named in the path.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	p, err := h.Providers.Get(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown oauth provider")
		return
	}

	state := oauth.NewState()
	verifier := oauth.NewVerifier()
	h.setFlowCookie(w, stateCookieName, state)
	h.setFlowCookie(w, pkceCookieName, verifier)

	http.Redirect(w, r, p.AuthCodeURL(state, verifier), http.StatusFound)
}

// Callback finishes the flow: it checks state, redeems the code with the
// PKCE verifier, reconciles the identity and issues a session token.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	p, err := h.Providers.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown oauth provider")
		return
	}
	log := logger(h.Log).With(zap.String("provider", name))

	state := cookieValue(r, stateCookieName)
	verifier := cookieValue(r, pkceCookieName)
	h.clearFlowCookies(w)

	q := r.URL.Query()
	if !oauth.StateMatches(state, q.Get("state")) {
		h.Metrics.ObserveLogin(name, "invalid_state")
		writeError(w, http.StatusUnauthorized, "invalid state")
		return
	}

	if e := q.Get("error"); e != "" {
		log.Warn("provider returned error",
			zap.String("error", e),
			zap.String("description", q.Get("error_description")),
		)
		h.Metrics.ObserveLogin(name, "provider_error")
		writeError(w, http.StatusUnauthorized, "external login failed")
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}
	if verifier == "" {
		h.Metrics.ObserveLogin(name, "invalid_state")
		writeError(w, http.StatusUnauthorized, "missing pkce verifier")
		return
	}

	identity, err := p.Exchange(r.Context(), code, verifier)
	if err != nil {
		log.Warn("code exchange failed", zap.Error(err))
		h.Metrics.ObserveLogin(name, "exchange_failed")
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	res, err := h.Reconciler.Login(r.Context(), name, service.ProviderAttributes{
		Email:       identity.Email,
		DisplayName: identity.Name,
		Subject:     identity.Subject,
	})
	if err != nil {
		h.Metrics.ObserveLogin(name, loginOutcome(err))
		if !errors.Is(err, service.ErrProviderMismatch) && !errors.Is(err, service.ErrMissingProviderEmail) {
			log.Error("external login failed", zap.String("subject", identity.Subject), zap.Error(err))
		}
		writeServiceError(w, h.Log, err)
		return
	}

	h.Metrics.ObserveLogin(name, "success")
	log.Info("external login", zap.String("user_id", res.User.ID))

	if h.SuccessRedirectURL != "" {
		http.Redirect(w, r, h.successURL(res), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, newLoginResponse(res))
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, service.ErrProviderMismatch):
		return "provider_mismatch"
	case errors.Is(err, service.ErrMissingProviderEmail):
		return "missing_email"
	default:
		return "error"
	}
}

// successURL puts the token in the fragment so it is never sent to a server.
func (h *OAuthHandler) successURL(res *service.LoginResult) string {
	frag := url.Values{}
	frag.Set("token", res.Token.Value)
	frag.Set("tokenType", "Bearer")
	frag.Set("expiresAt", res.Token.ExpiresAt.UTC().Format(time.RFC3339))
	frag.Set("userId", res.User.ID)

	u, err := url.Parse(h.SuccessRedirectURL)
	if err != nil {
		return h.SuccessRedirectURL + "#" + frag.Encode()
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String() + "#" + frag.Encode()
}

func (h *OAuthHandler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     callbackPath,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(flowCookieTTL.Seconds()),
	})
}

func (h *OAuthHandler) clearFlowCookies(w http.ResponseWriter) {
	for _, name := range []string{stateCookieName, pkceCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Path:     callbackPath,
			HttpOnly: true,
			Secure:   h.SecureCookies,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
