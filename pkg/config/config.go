package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittodrive/pkg/api"
	"github.com/marmos91/dittodrive/pkg/auth"
	"github.com/marmos91/dittodrive/pkg/gc"
	"github.com/spf13/viper"
)

// Config represents the complete DittoDrive configuration.
//
// This structure captures all configurable aspects of the server including:
//   - Logging configuration
//   - Server-wide settings
//   - HTTP adapter settings
//   - Authentication (OIDC or static tokens)
//   - Registry and blob store selection (store-specific option maps)
//   - Access policy, orphan collection and metrics
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTODRIVE_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct contains type-specific option maps (e.g., blob.filesystem, blob.s3)
// and only the section matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// HTTP configures the REST adapter
	HTTP api.Config `mapstructure:"http" yaml:"http"`

	// Auth selects how bearer tokens are verified
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Registry specifies the file registry type and type-specific configuration
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`

	// Blob specifies the blob store type and type-specific configuration
	Blob BlobConfig `mapstructure:"blob" yaml:"blob"`

	// Access tunes the authorization policy
	Access AccessConfig `mapstructure:"access" yaml:"access"`

	// GC configures the orphan collector
	GC gc.Config `mapstructure:"gc" yaml:"gc"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// AuthConfig selects the token verifier.
type AuthConfig struct {
	// Type specifies which authenticator to use
	// Valid values: oidc, static
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=oidc static"`

	// OIDC is only used (and validated) when Type = "oidc"
	OIDC auth.OIDCConfig `mapstructure:"oidc" yaml:"oidc" validate:"-"`

	// Static is only used (and validated) when Type = "static"
	Static StaticAuthConfig `mapstructure:"static" yaml:"static" validate:"-"`
}

// StaticAuthConfig lists fixed bearer tokens. Intended for development and
// tests; tokens are compared in constant time.
type StaticAuthConfig struct {
	Tokens []auth.StaticToken `mapstructure:"tokens" yaml:"tokens" validate:"dive"`
}

// RegistryConfig specifies file registry configuration.
//
// The Type field determines which registry implementation is used.
// Only the corresponding type-specific configuration section is used.
type RegistryConfig struct {
	// Type specifies which registry implementation to use
	// Valid values: memory, badger, sql
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger sql"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// SQL contains gorm-specific configuration (dialect, dsn, ...)
	// Only used when Type = "sql"
	SQL map[string]any `mapstructure:"sql" yaml:"sql"`

	// Naming bounds storage key and public id allocation
	Naming NamingConfig `mapstructure:"naming" yaml:"naming"`
}

// NamingConfig bounds the storage key resolver.
type NamingConfig struct {
	// MaxAttempts is the number of "name (n).ext" candidates tried before
	// giving up. 0 means the resolver default.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gte=0"`

	// MaxIDAttempts bounds public id collisions. 0 means the registry default.
	MaxIDAttempts int `mapstructure:"max_id_attempts" yaml:"max_id_attempts" validate:"gte=0"`
}

// BlobConfig specifies blob store configuration.
type BlobConfig struct {
	// Type specifies which blob store implementation to use
	// Valid values: memory, filesystem, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory filesystem s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// AccessConfig tunes authorization.
type AccessConfig struct {
	// GranteesCanDownload lets co-authors download shared files.
	// Default: false (owner only)
	GranteesCanDownload bool `mapstructure:"grantees_can_download" yaml:"grantees_can_download"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	// Enabled starts the Prometheus endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port for the metrics HTTP server
	// Default: 9090
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTODRIVE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use DITTODRIVE_ prefix and underscores
	// Example: DITTODRIVE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTODRIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans whose zero value is not the default have to be known to
	// viper, otherwise an absent key and "false" are indistinguishable.
	v.SetDefault("gc.enabled", true)

	// AutomaticEnv only resolves keys viper already knows about
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"http.listen", "http.base_url",
		"auth.type", "auth.oidc.issuer", "auth.oidc.client_id", "auth.oidc.public_issuer",
		"registry.type", "blob.type",
		"access.grantees_can_download",
		"metrics.enabled", "metrics.port",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	// Default location: $XDG_CONFIG_HOME/dittodrive/config.{yaml,toml}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittodrive")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittodrive")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
