package config

import (
	"strings"
	"testing"

	"github.com/marmos91/dittodrive/pkg/auth"
)

func staticConfig() *Config {
	cfg := GetDefaultConfig()
	cfg.Auth.Type = "static"
	cfg.Auth.Static.Tokens = []auth.StaticToken{
		{Token: "a", UserID: "alice"},
		{Token: "b", UserID: "bob"},
	}
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
	if err := Validate(staticConfig()); err != nil {
		t.Errorf("Expected valid static config to pass validation, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.Logging.Level = "INVALID" }, "oneof"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "oneof"},
		{"shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = -1 }, "gt"},
		{"registry type", func(c *Config) { c.Registry.Type = "postgres" }, "oneof"},
		{"blob type", func(c *Config) { c.Blob.Type = "gcs" }, "oneof"},
		{"auth type", func(c *Config) { c.Auth.Type = "ldap" }, "oneof"},
		{"base url", func(c *Config) { c.HTTP.BaseURL = "not a url" }, "url"},
		{"metrics port", func(c *Config) { c.Metrics.Port = 70000 }, "max"},
		{"naming attempts", func(c *Config) { c.Registry.Naming.MaxAttempts = -1 }, "gte"},
		{"oidc issuer", func(c *Config) { c.Auth.OIDC.Issuer = "" }, "auth.oidc"},
		{"oidc client", func(c *Config) { c.Auth.OIDC.ClientID = "" }, "auth.oidc"},
		{"burst without rate", func(c *Config) { c.HTTP.UploadBurst = 5 }, "upload_burst"},
		{"negative gc", func(c *Config) { c.GC.Interval = -1 }, "gc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_StaticAuth(t *testing.T) {
	tests := []struct {
		name    string
		tokens  []auth.StaticToken
		wantErr string
	}{
		{"no tokens", nil, "at least one token"},
		{"missing user", []auth.StaticToken{{Token: "a"}}, "required"},
		{"missing token", []auth.StaticToken{{UserID: "alice"}}, "required"},
		{"duplicate", []auth.StaticToken{{Token: "a", UserID: "alice"}, {Token: "a", UserID: "bob"}}, "duplicate token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := staticConfig()
			cfg.Auth.Static.Tokens = tt.tokens

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_StaticIgnoresOIDCSection(t *testing.T) {
	cfg := staticConfig()
	cfg.Auth.OIDC = auth.OIDCConfig{}

	if err := Validate(cfg); err != nil {
		t.Errorf("oidc section must not be validated for static auth: %v", err)
	}
}

func TestValidate_LowercaseLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "debug"

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected lowercase level to validate, got: %v", err)
	}
}
