package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation that depends on the selected types.
func validateCustomRules(cfg *Config) error {
	switch cfg.Auth.Type {
	case "oidc":
		if err := validate.Struct(&cfg.Auth.OIDC); err != nil {
			return fmt.Errorf("auth.oidc: %w", formatValidationError(err))
		}
	case "static":
		if len(cfg.Auth.Static.Tokens) == 0 {
			return fmt.Errorf("auth.static: at least one token must be configured")
		}
		if err := validate.Struct(&cfg.Auth.Static); err != nil {
			return fmt.Errorf("auth.static: %w", formatValidationError(err))
		}
		seen := make(map[string]bool)
		for i, t := range cfg.Auth.Static.Tokens {
			if seen[t.Token] {
				return fmt.Errorf("auth.static.tokens[%d]: duplicate token", i)
			}
			seen[t.Token] = true
		}
	}

	if cfg.HTTP.UploadBurst > 0 && cfg.HTTP.UploadRateLimit == 0 {
		return fmt.Errorf("http: upload_burst requires upload_rate_limit")
	}

	if cfg.GC.Interval < 0 || cfg.GC.ReservationTTL < 0 || cfg.GC.RunTimeout < 0 {
		return fmt.Errorf("gc: durations must not be negative")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
