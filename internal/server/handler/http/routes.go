package http

import (
	"net/http"

	"github.com/aspira/backend/internal/metrics"
	"github.com/aspira/backend/internal/middleware"
	"github.com/aspira/backend/internal/policy"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Pipeline holds the collaborators of the authentication stages that run
// before routing.
type Pipeline struct {
	Verifier middleware.TokenVerifier
	Users    middleware.UserFinder
	Policy   *policy.Policy
	Metrics  *metrics.Metrics
}

// NewRouter constructs the HTTP handler for the API.
//
// Middleware chain (applied in order):
//  1. Recoverer                           turns panics into 500s
//  2. WithRequestLogging(logger)          logs each request
//  3. Authenticate                        resolves the bearer token, never rejects
//  4. Enforce(policy)                     rejects anonymous requests to protected routes
//  5. AllowContentType("application/json") rejects non-JSON bodies
//
// Routes:
//
//	POST   /api/auth/login, /api/users/login   → authHandler.Login
//	POST   /api/auth/register, /api/users      → authHandler.Register
//	GET    /oauth2/authorization/{provider}    → oauthHandler.Authorize
//	GET    /login/oauth2/code/{provider}       → oauthHandler.Callback
//	GET    /api/users/me                       → usersHandler.Me
//	PUT    /api/users/me/profile               → usersHandler.UpdateProfile
//	DELETE /api/users/me                       → usersHandler.DeleteMe
//	GET    /api/users/email?email=             → usersHandler.EmailExists
//	GET    /api/users/{id}                     → usersHandler.Get
//	GET    /health, /metrics
func NewRouter(
	authHandler *AuthHandler,
	oauthHandler *OAuthHandler,
	usersHandler *UsersHandler,
	pipeline Pipeline,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.Authenticate(pipeline.Verifier, pipeline.Users, logger, pipeline.Metrics))
	r.Use(middleware.Enforce(pipeline.Policy, logger, pipeline.Metrics))
	r.Use(chiMiddleware.AllowContentType("application/json"))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", pipeline.Metrics.Handler())

	r.Get("/oauth2/authorization/{provider}", oauthHandler.Authorize)
	r.Get("/login/oauth2/code/{provider}", oauthHandler.Callback)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/register", authHandler.Register)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Get("/email", usersHandler.EmailExists)
			r.Get("/me", usersHandler.Me)
			r.Put("/me/profile", usersHandler.UpdateProfile)
			r.Delete("/me", usersHandler.DeleteMe)
			r.Get("/{id}", usersHandler.Get)
		})
	})

	return r
}
