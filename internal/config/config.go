// Package config loads server configuration from command-line flags,
// environment variables, an optional config file and defaults, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables mapped onto config keys,
// e.g. ASPIRA_AUTH_TOKEN_TTL for auth.token_ttl.
const EnvPrefix = "ASPIRA"

// ErrMissingSecret is returned by Validate when no signing secret is configured.
var ErrMissingSecret = errors.New("auth.jwt_secret is required")

// Options holds the configuration values for the application.
type Options struct {
	// Address is the server's listening address (ip:port).
	Address string `mapstructure:"address"`

	// DatabaseDSN is the PostgreSQL connection string.
	DatabaseDSN string `mapstructure:"database_dsn"`

	// LogLevel is the minimum zap level name.
	LogLevel string `mapstructure:"log_level"`

	// Config is the path to the config file, if any.
	Config string `mapstructure:"-"`

	Auth   AuthOptions   `mapstructure:"auth"`
	OAuth  OAuthOptions  `mapstructure:"oauth"`
	Policy PolicyOptions `mapstructure:"policy"`
}

// AuthOptions configures local credentials and session tokens.
type AuthOptions struct {
	// JWTSecret signs every session token. Rotating it invalidates all tokens.
	JWTSecret string `mapstructure:"jwt_secret"`
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// Issuer is written into and required from tokens.
	Issuer string `mapstructure:"issuer"`
	// BcryptCost is the password hashing work factor.
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// OAuthOptions configures external identity providers.
type OAuthOptions struct {
	Providers []ProviderOptions `mapstructure:"providers"`
	// SuccessRedirectURL, when set, receives the token in its fragment after
	// an external login instead of a JSON response.
	SuccessRedirectURL string `mapstructure:"success_redirect_url"`
	// SecureCookies marks the state and PKCE cookies Secure.
	SecureCookies bool `mapstructure:"secure_cookies"`
}

// ProviderOptions describes one OpenID Connect provider.
type ProviderOptions struct {
	Name         string   `mapstructure:"name"`
	Issuer       string   `mapstructure:"issuer"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// PolicyOptions holds the route access table. An empty table selects the
// built-in default.
type PolicyOptions struct {
	Rules []RuleOptions `mapstructure:"rules"`
}

// RuleOptions is one route access entry. Empty Methods means any method.
type RuleOptions struct {
	Methods []string `mapstructure:"methods"`
	Pattern string   `mapstructure:"pattern"`
	Access  string   `mapstructure:"access"`
}

// Load parses args (without the program name) and the environment, reads
// the config file named by --config or CONFIG when it exists, and returns
// validated options.
func Load(args []string) (*Options, error) {
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	fs.StringP("address", "a", "localhost:8080", "run on ip:port server")
	fs.StringP("database-dsn", "d", "", "db address")
	fs.StringP("config", "c", "", "path to config file")
	fs.String("log-level", "info", "log level")
	fs.String("jwt-secret", "", "token signing secret")
	fs.Duration("token-ttl", 24*time.Hour, "session token lifetime")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("address", EnvPrefix+"_ADDRESS", "SERVER_ADDRESS")
	_ = v.BindEnv("database_dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_DSN")
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET")

	for key, flag := range map[string]string{
		"address":         "address",
		"database_dsn":    "database-dsn",
		"log_level":       "log-level",
		"auth.jwt_secret": "jwt-secret",
		"auth.token_ttl":  "token-ttl",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	configPath, _ := fs.GetString("config")
	if !fs.Changed("config") {
		if env := os.Getenv("CONFIG"); env != "" {
			configPath = env
		}
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	opts.Config = configPath

	if err := Validate(&opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("address", "localhost:8080")
	v.SetDefault("database_dsn", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.issuer", "aspira")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("oauth.success_redirect_url", "")
	v.SetDefault("oauth.secure_cookies", true)
}

// Validate checks options that the server cannot start without.
func Validate(opts *Options) error {
	if strings.TrimSpace(opts.Auth.JWTSecret) == "" {
		return ErrMissingSecret
	}
	if opts.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", opts.Auth.TokenTTL)
	}
	seen := make(map[string]bool, len(opts.OAuth.Providers))
	for i, p := range opts.OAuth.Providers {
		if p.Name == "" || p.Issuer == "" || p.ClientID == "" || p.RedirectURL == "" {
			return fmt.Errorf("oauth.providers[%d]: name, issuer, client_id and redirect_url are required", i)
		}
		if p.Name == "local" {
			return fmt.Errorf("oauth.providers[%d]: provider name %q is reserved", i, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("oauth.providers[%d]: duplicate provider %q", i, p.Name)
		}
		seen[p.Name] = true
	}
	for i, r := range opts.Policy.Rules {
		if r.Pattern == "" || r.Access == "" {
			return fmt.Errorf("policy.rules[%d]: pattern and access are required", i)
		}
	}
	return nil
}
