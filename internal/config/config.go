package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
)

// Config represents the main Parley configuration
type Config struct {
	// Coordination settings for the host-local session store
	Coordination CoordinationConfig `json:"coordination" mapstructure:"coordination"`

	// Providers
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// CoordinationConfig holds the loopback coordination settings. Every
// invocation on a host must agree on the port for the keeper election to
// work.
type CoordinationConfig struct {
	Port            int `json:"port" mapstructure:"port"`
	DialTimeout     int `json:"dial_timeout" mapstructure:"dial_timeout"`           // seconds
	ReadTimeout     int `json:"read_timeout" mapstructure:"read_timeout"`           // seconds
	AutosaveSeconds int `json:"autosave_interval" mapstructure:"autosave_interval"` // seconds
	MetricsPort     int `json:"metrics_port" mapstructure:"metrics_port"`           // 0 disables
}

// ProvidersConfig holds model provider configuration
type ProvidersConfig struct {
	Default   string         `json:"default" mapstructure:"default"` // anthropic, openai
	Anthropic ProviderConfig `json:"anthropic" mapstructure:"anthropic"`
	OpenAI    ProviderConfig `json:"openai" mapstructure:"openai"`
}

// ProviderConfig holds one provider's credentials and model choice
type ProviderConfig struct {
	APIKey string `json:"api_key" mapstructure:"api_key"`
	Model  string `json:"model" mapstructure:"model"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Coordination: CoordinationConfig{
			Port:            7654,
			DialTimeout:     5,
			ReadTimeout:     5,
			AutosaveSeconds: 30,
		},
		Providers: ProvidersConfig{
			Default: "anthropic",
			Anthropic: ProviderConfig{
				Model: "claude-sonnet-4-20250514",
			},
			OpenAI: ProviderConfig{
				Model: "gpt-4o",
			},
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   50,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		DataDir: "",
	}
}

// SessionsDir returns the directory session snapshots live in.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// Provider returns the named provider's settings. An empty name means the
// configured default.
func (c *Config) Provider(name string) (string, ProviderConfig, error) {
	if name == "" {
		name = c.Providers.Default
	}

	switch name {
	case "anthropic":
		return name, c.Providers.Anthropic, nil
	case "openai":
		return name, c.Providers.OpenAI, nil
	}
	return "", ProviderConfig{}, fmt.Errorf("unsupported provider: %s", name)
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Coordination.Port < 1 || c.Coordination.Port > 65535 {
		return fmt.Errorf("coordination port must be between 1 and 65535, got %d", c.Coordination.Port)
	}
	if c.Coordination.DialTimeout < 0 {
		return fmt.Errorf("coordination dial_timeout must be >= 0")
	}
	if c.Coordination.ReadTimeout < 0 {
		return fmt.Errorf("coordination read_timeout must be >= 0")
	}
	if c.Coordination.AutosaveSeconds < 0 {
		return fmt.Errorf("coordination autosave_interval must be >= 0")
	}

	if c.Providers.Default != "anthropic" && c.Providers.Default != "openai" {
		return fmt.Errorf("invalid default provider %s (must be: anthropic, openai)", c.Providers.Default)
	}

	return nil
}
