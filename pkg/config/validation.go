package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate checks the struct tags on Config and its sections.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks a configuration after ApplyDefaults.
//
// Field-level rules (enumerations, ranges, listen address syntax) are struct
// tags; rules spanning several fields are in validateCustomRules. Only the
// first failure is reported.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules checks constraints that involve more than one field.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.FTP.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if cfg.Auth.RateLimit.Burst > 0 && cfg.Auth.RateLimit.RequestsPerSecond == 0 {
		return fmt.Errorf("auth.rate_limit: burst is set but requests_per_second is 0")
	}

	for user, key := range cfg.Auth.UsernameMap {
		if key == "" {
			return fmt.Errorf("auth.username_map: user %q maps to an empty access key", user)
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		return fmt.Errorf("metrics: port is required when metrics are enabled")
	}

	return nil
}

// formatValidationError reports the first failing field by its config path.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
