package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittodrive/pkg/auth"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Booleans keep their zero value; gc.enabled is defaulted by Load
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	cfg.HTTP.ApplyDefaults()
	applyAuthDefaults(&cfg.Auth)
	applyRegistryDefaults(&cfg.Registry)
	applyBlobDefaults(&cfg.Blob)
	cfg.GC.ApplyDefaults()
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Type == "" {
		cfg.Type = "oidc"
	}
	if cfg.OIDC.DiscoveryAttempts == 0 {
		cfg.OIDC.DiscoveryAttempts = 5
	}
	if cfg.OIDC.DiscoveryInterval == 0 {
		cfg.OIDC.DiscoveryInterval = 2 * time.Second
	}
}

func applyRegistryDefaults(cfg *RegistryConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.SQL == nil {
		cfg.SQL = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/dittodrive-registry"
	}
	if _, ok := cfg.SQL["dialect"]; !ok {
		cfg.SQL["dialect"] = "sqlite"
	}
	if _, ok := cfg.SQL["dsn"]; !ok {
		cfg.SQL["dsn"] = "/tmp/dittodrive.db"
	}
}

func applyBlobDefaults(cfg *BlobConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "/tmp/dittodrive-blobs"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.GC.Enabled = true

	// Placeholders so a freshly generated file loads; point them at the
	// real identity provider.
	cfg.Auth.OIDC.Issuer = "http://localhost:8081/realms/drive"
	cfg.Auth.OIDC.ClientID = "dittodrive"
	cfg.Auth.Static.Tokens = []auth.StaticToken{}

	ApplyDefaults(cfg)
	return cfg
}
