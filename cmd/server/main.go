// Package main initializes and starts the Aspira backend HTTP server,
// setting up configuration, logging, the database, the authentication
// pipeline, handlers and graceful shutdown.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/aspira/backend/internal/config"
	"github.com/aspira/backend/internal/credential"
	"github.com/aspira/backend/internal/db"
	"github.com/aspira/backend/internal/logger"
	"github.com/aspira/backend/internal/metrics"
	"github.com/aspira/backend/internal/oauth"
	"github.com/aspira/backend/internal/policy"
	"github.com/aspira/backend/internal/repository"
	"github.com/aspira/backend/internal/server/handler/http"
	"github.com/aspira/backend/internal/service"
	"github.com/aspira/backend/internal/token"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse flags, environment and config file.
	options, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	lg := logger.New()
	if err := lg.Init(options.LogLevel); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = lg.Log.Sync() }()
	zapLogger := lg.Log

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	users := repository.NewPostgresUserRepository(postgresDB)

	codec, err := token.NewCodec(options.Auth.JWTSecret, token.WithIssuer(options.Auth.Issuer))
	if err != nil {
		zapLogger.Fatal("cannot init token codec", zap.Error(err))
	}

	// Initialize business-logic services.
	ttl := options.Auth.TokenTTL
	authService := service.NewAuthService(users, credential.NewBcryptHasher(options.Auth.BcryptCost), codec, ttl)
	reconciler := service.NewReconciler(users, codec, ttl)
	userService := service.NewUserService(users)

	providers, err := buildProviders(options.OAuth.Providers)
	if err != nil {
		zapLogger.Fatal("cannot init oauth providers", zap.Error(err))
	}

	accessPolicy, err := buildPolicy(options.Policy.Rules)
	if err != nil {
		zapLogger.Fatal("invalid access policy", zap.Error(err))
	}

	m := metrics.New()

	// Create HTTP handlers.
	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger, Metrics: m}
	oauthHandler := &http.OAuthHandler{
		Providers:          providers,
		Reconciler:         reconciler,
		SuccessRedirectURL: options.OAuth.SuccessRedirectURL,
		SecureCookies:      options.OAuth.SecureCookies,
		Log:                zapLogger,
		Metrics:            m,
	}
	usersHandler := &http.UsersHandler{Users: userService, Log: zapLogger}

	// Build the router with the authentication pipeline and routes.
	router := http.NewRouter(authHandler, oauthHandler, usersHandler, http.Pipeline{
		Verifier: codec,
		Users:    users,
		Policy:   accessPolicy,
		Metrics:  m,
	}, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		zapLogger.Info("starting HTTP server",
			zap.String("addr", options.Address),
			zap.Strings("oauth_providers", providers.Names()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildProviders runs OpenID Connect discovery for each configured provider.
func buildProviders(list []config.ProviderOptions) (*oauth.Registry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	providers := make([]oauth.Provider, 0, len(list))
	for _, p := range list {
		provider, err := oauth.NewOIDCProvider(ctx, oauth.OIDCConfig{
			Name:         p.Name,
			Issuer:       p.Issuer,
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURL,
			Scopes:       p.Scopes,
		})
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
		providers = append(providers, provider)
	}
	return oauth.NewRegistry(providers...), nil
}

// buildPolicy compiles the configured route table, or the default table
// when none is configured.
func buildPolicy(rules []config.RuleOptions) (*policy.Policy, error) {
	if len(rules) == 0 {
		return policy.Default(), nil
	}
	compiled := make([]policy.Rule, 0, len(rules))
	for _, r := range rules {
		access, err := policy.ParseAccess(r.Access)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Pattern, err)
		}
		compiled = append(compiled, policy.Rule{Methods: r.Methods, Pattern: r.Pattern, Access: access})
	}
	return policy.New(compiled)
}
