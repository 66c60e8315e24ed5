package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configPath
}

func TestLoad_MinimalConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "debug"

auth:
  type: "static"
  static:
    tokens:
      - token: "secret"
        user_id: "alice"

blob:
  type: "memory"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.HTTP.Listen != ":8080" {
		t.Errorf("Expected default listen ':8080', got %q", cfg.HTTP.Listen)
	}
	if cfg.Registry.Type != "memory" {
		t.Errorf("Expected default registry 'memory', got %q", cfg.Registry.Type)
	}
	if !cfg.GC.Enabled {
		t.Error("Expected gc to be enabled by default")
	}
	if cfg.GC.ReservationTTL != time.Hour {
		t.Errorf("Expected default reservation_ttl 1h, got %v", cfg.GC.ReservationTTL)
	}
	if cfg.Access.GranteesCanDownload {
		t.Error("Expected grantees_can_download to default to false")
	}
	if len(cfg.Auth.Static.Tokens) != 1 || cfg.Auth.Static.Tokens[0].UserID != "alice" {
		t.Errorf("Unexpected static tokens: %+v", cfg.Auth.Static.Tokens)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  shutdown_timeout: 5s

http:
  listen: "127.0.0.1:9000"
  base_url: "https://drive.example.com"
  upload_rate_limit: 5
  upload_burst: 10
  max_upload_bytes: 1048576

auth:
  type: "oidc"
  oidc:
    issuer: "http://keycloak:8080/realms/drive"
    client_id: "drive"
    public_issuer: "https://auth.example.com/realms/drive"

registry:
  type: "sql"
  sql:
    dialect: "sqlite"
    dsn: "/var/lib/drive.db"
  naming:
    max_attempts: 50

blob:
  type: "s3"
  s3:
    bucket: "drive"
    region: "eu-west-1"

access:
  grantees_can_download: true

gc:
  enabled: false
  interval: 15m
  dry_run: true

metrics:
  enabled: true
  port: 9191
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown_timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.HTTP.Listen != "127.0.0.1:9000" || cfg.HTTP.BaseURL != "https://drive.example.com" {
		t.Errorf("unexpected http config: %+v", cfg.HTTP)
	}
	if cfg.HTTP.UploadRateLimit != 5 || cfg.HTTP.UploadBurst != 10 || cfg.HTTP.MaxUploadBytes != 1048576 {
		t.Errorf("unexpected upload limits: %+v", cfg.HTTP)
	}
	if cfg.Auth.OIDC.PublicIssuer != "https://auth.example.com/realms/drive" {
		t.Errorf("public_issuer = %q", cfg.Auth.OIDC.PublicIssuer)
	}
	if cfg.Auth.OIDC.DiscoveryAttempts != 5 {
		t.Errorf("Expected default discovery_attempts 5, got %d", cfg.Auth.OIDC.DiscoveryAttempts)
	}
	if cfg.Registry.SQL["dsn"] != "/var/lib/drive.db" {
		t.Errorf("sql dsn = %v", cfg.Registry.SQL["dsn"])
	}
	if cfg.Registry.Naming.MaxAttempts != 50 {
		t.Errorf("max_attempts = %d", cfg.Registry.Naming.MaxAttempts)
	}
	if cfg.Blob.S3["bucket"] != "drive" {
		t.Errorf("s3 bucket = %v", cfg.Blob.S3["bucket"])
	}
	if !cfg.Access.GranteesCanDownload {
		t.Error("Expected grantees_can_download true")
	}
	if cfg.GC.Enabled || !cfg.GC.DryRun || cfg.GC.Interval != 15*time.Minute {
		t.Errorf("unexpected gc config: %+v", cfg.GC)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9191 {
		t.Errorf("unexpected metrics config: %+v", cfg.Metrics)
	}
}

func TestLoad_NoConfigFileRequiresIssuer(t *testing.T) {
	// A missing file is fine, but the default oidc authenticator has no
	// issuer to talk to.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	_, err := Load(nonExistentPath)
	if err == nil {
		t.Fatal("Expected validation error without an oidc issuer")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
auth:
  type: "oidc"
  oidc:
    issuer: "http://keycloak:8080/realms/drive"
    client_id: "drive"
`)

	t.Setenv("DITTODRIVE_LOGGING_LEVEL", "WARN")
	t.Setenv("DITTODRIVE_HTTP_LISTEN", ":7070")
	t.Setenv("DITTODRIVE_AUTH_OIDC_CLIENT_ID", "from-env")
	t.Setenv("DITTODRIVE_ACCESS_GRANTEES_CAN_DOWNLOAD", "true")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level from env 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.HTTP.Listen != ":7070" {
		t.Errorf("Expected listen from env ':7070', got %q", cfg.HTTP.Listen)
	}
	if cfg.Auth.OIDC.ClientID != "from-env" {
		t.Errorf("Expected client_id from env, got %q", cfg.Auth.OIDC.ClientID)
	}
	if !cfg.Access.GranteesCanDownload {
		t.Error("Expected grantees_can_download from env")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "INFO"
  invalid yaml here: [
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	configPath := writeConfig(t, `
auth:
  type: "static"
  static:
    tokens:
      - token: "secret"
        user_id: "alice"
registry:
  type: "postgres"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown registry type")
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := GetConfigDir(); got != filepath.Join("/custom/config", "dittodrive") {
		t.Errorf("Expected XDG path, got %q", got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join("/custom/config", "dittodrive", "config.yaml") {
		t.Errorf("Unexpected default path %q", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := GetConfigDir(); got != filepath.Join(home, ".config", "dittodrive") {
		t.Errorf("Expected ~/.config path, got %q", got)
	}
}
