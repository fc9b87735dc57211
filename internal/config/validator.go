package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateProvider validates a provider name
func (v *Validator) ValidateProvider(name string) error {
	if name == "" {
		return nil // Use default
	}

	validProviders := []string{"anthropic", "openai"}
	for _, valid := range validProviders {
		if name == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid provider: %s (must be one of: %s)", name, strings.Join(validProviders, ", "))
}

// ValidateModel validates a model name
func (v *Validator) ValidateModel(model string) error {
	if model == "" {
		return fmt.Errorf("model name cannot be empty")
	}

	// Check if it's a known model
	knownModels := []string{
		"claude-opus-4-20250514",
		"claude-sonnet-4-20250514",
		"claude-3-5-haiku-latest",
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
	}

	for _, known := range knownModels {
		if model == known {
			return nil
		}
	}

	// Allow custom models (just warn)
	return nil
}

// ValidatePort validates a coordination port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidatePort(cfg.Coordination.Port); err != nil {
		errors = append(errors, fmt.Errorf("coordination: %w", err))
	}
	if cfg.Coordination.DialTimeout < 0 {
		errors = append(errors, fmt.Errorf("coordination dial_timeout must be >= 0"))
	}
	if cfg.Coordination.ReadTimeout < 0 {
		errors = append(errors, fmt.Errorf("coordination read_timeout must be >= 0"))
	}
	if cfg.Coordination.AutosaveSeconds < 0 {
		errors = append(errors, fmt.Errorf("coordination autosave_interval must be >= 0"))
	}

	if err := v.ValidateProvider(cfg.Providers.Default); err != nil {
		errors = append(errors, err)
	}
	if cfg.Providers.Anthropic.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.Providers.Anthropic.APIKey, "anthropic"); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.Providers.OpenAI.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.Providers.OpenAI.APIKey, "openai"); err != nil {
			errors = append(errors, err)
		}
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
