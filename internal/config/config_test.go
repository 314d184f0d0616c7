package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	opts, err := Load([]string{"--jwt-secret", "s3cret"})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if opts.Address != "localhost:8080" {
		t.Errorf("Address = %q; want localhost:8080", opts.Address)
	}
	if opts.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want info", opts.LogLevel)
	}
	if opts.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v; want 24h", opts.Auth.TokenTTL)
	}
	if opts.Auth.Issuer != "aspira" || opts.Auth.BcryptCost != 10 {
		t.Errorf("unexpected auth defaults: %+v", opts.Auth)
	}
	if !opts.OAuth.SecureCookies {
		t.Error("SecureCookies should default to true")
	}
	if len(opts.Policy.Rules) != 0 {
		t.Errorf("expected no policy rules by default, got %d", len(opts.Policy.Rules))
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	_, err := Load(nil)
	if !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("Load error = %v; want ErrMissingSecret", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_ADDRESS", "0.0.0.0:9000")
	t.Setenv("ASPIRA_AUTH_TOKEN_TTL", "90m")
	t.Setenv("ASPIRA_LOG_LEVEL", "debug")

	opts, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if opts.Auth.JWTSecret != "from-env" {
		t.Errorf("JWTSecret = %q; want from-env", opts.Auth.JWTSecret)
	}
	if opts.Address != "0.0.0.0:9000" {
		t.Errorf("Address = %q; want 0.0.0.0:9000", opts.Address)
	}
	if opts.Auth.TokenTTL != 90*time.Minute {
		t.Errorf("TokenTTL = %v; want 90m", opts.Auth.TokenTTL)
	}
	if opts.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want debug", opts.LogLevel)
	}
}

func TestLoad_FlagsBeatEnvironment(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", "0.0.0.0:9000")

	opts, err := Load([]string{"-a", "127.0.0.1:7000", "--jwt-secret", "x"})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if opts.Address != "127.0.0.1:7000" {
		t.Errorf("Address = %q; want flag value", opts.Address)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
address: ":8081"
auth:
  jwt_secret: file-secret
  token_ttl: 2h
oauth:
  success_redirect_url: https://app.example.com/oauth/done
  providers:
    - name: google
      issuer: https://accounts.google.com
      client_id: id
      client_secret: secret
      redirect_url: http://localhost:8081/login/oauth2/code/google
      scopes: [openid, email, profile]
policy:
  rules:
    - methods: [GET]
      pattern: /health
      access: public
    - pattern: /api/**
      access: requires_auth
`)

	opts, err := Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if opts.Config != path {
		t.Errorf("Config = %q; want %q", opts.Config, path)
	}
	if opts.Address != ":8081" || opts.Auth.JWTSecret != "file-secret" || opts.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("unexpected options: %+v", opts)
	}
	if len(opts.OAuth.Providers) != 1 || opts.OAuth.Providers[0].Name != "google" {
		t.Fatalf("unexpected providers: %+v", opts.OAuth.Providers)
	}
	if got := opts.OAuth.Providers[0].Scopes; len(got) != 3 {
		t.Errorf("Scopes = %v; want 3 entries", got)
	}
	if len(opts.Policy.Rules) != 2 || opts.Policy.Rules[0].Methods[0] != "GET" || opts.Policy.Rules[1].Access != "requires_auth" {
		t.Errorf("unexpected rules: %+v", opts.Policy.Rules)
	}
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	path := writeConfig(t, "config.json", `{"auth": {"jwt_secret": "json-secret"}}`)
	t.Setenv("CONFIG", path)

	opts, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if opts.Auth.JWTSecret != "json-secret" {
		t.Errorf("JWTSecret = %q; want json-secret", opts.Auth.JWTSecret)
	}
}

func TestLoad_MissingConfigFileIsIgnored(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := Load([]string{"-c", missing, "--jwt-secret", "x"}); err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
}

func TestLoad_BadFlag(t *testing.T) {
	if _, err := Load([]string{"--no-such-flag"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Options {
		return &Options{Auth: AuthOptions{JWTSecret: "x", TokenTTL: time.Hour}}
	}

	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"valid", func(*Options) {}, false},
		{"blank secret", func(o *Options) { o.Auth.JWTSecret = "  " }, true},
		{"zero ttl", func(o *Options) { o.Auth.TokenTTL = 0 }, true},
		{"incomplete provider", func(o *Options) {
			o.OAuth.Providers = []ProviderOptions{{Name: "google"}}
		}, true},
		{"reserved provider name", func(o *Options) {
			o.OAuth.Providers = []ProviderOptions{{Name: "local", Issuer: "i", ClientID: "c", RedirectURL: "r"}}
		}, true},
		{"duplicate provider", func(o *Options) {
			p := ProviderOptions{Name: "google", Issuer: "i", ClientID: "c", RedirectURL: "r"}
			o.OAuth.Providers = []ProviderOptions{p, p}
		}, true},
		{"rule without access", func(o *Options) {
			o.Policy.Rules = []RuleOptions{{Pattern: "/api/**"}}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.mutate(o)
			err := Validate(o)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}
