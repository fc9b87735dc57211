package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
}

// NewWizard creates a new configuration wizard
func NewWizard() *Wizard {
	return &Wizard{
		reader: bufio.NewReader(os.Stdin),
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Println("=== Parley Configuration Wizard ===")
	fmt.Println()

	cfg := DefaultConfig()
	validator := NewValidator()

	// API Keys
	fmt.Println("API Keys (press Enter to skip and use environment variables):")
	fmt.Println()

	// Anthropic API Key
	for {
		fmt.Print("Anthropic API Key: ")
		key, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if key == "" {
			break
		}

		if err := validator.ValidateAPIKey(key, "anthropic"); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		cfg.Providers.Anthropic.APIKey = key
		break
	}

	// OpenAI API Key
	for {
		fmt.Print("OpenAI API Key: ")
		key, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if key == "" {
			break
		}

		if err := validator.ValidateAPIKey(key, "openai"); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		cfg.Providers.OpenAI.APIKey = key
		break
	}

	if cfg.Providers.Anthropic.APIKey == "" && cfg.Providers.OpenAI.APIKey == "" {
		fmt.Println()
		fmt.Println("No keys stored; ANTHROPIC_API_KEY or OPENAI_API_KEY from the environment will be used.")
	}

	fmt.Println()

	// Default provider
	fmt.Print("Default provider (anthropic/openai) [anthropic]: ")
	provider, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if provider != "" {
		if err := validator.ValidateProvider(provider); err != nil {
			fmt.Printf("Warning: %v, using default (anthropic)\n", err)
		} else {
			cfg.Providers.Default = provider
		}
	}

	fmt.Println()

	// Coordination port
	fmt.Print("Coordination port [7654]: ")
	portLine, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if portLine != "" {
		var port int
		if _, err := fmt.Sscanf(portLine, "%d", &port); err != nil {
			fmt.Println("Warning: not a number, using default (7654)")
		} else if err := validator.ValidatePort(port); err != nil {
			fmt.Printf("Warning: %v, using default (7654)\n", err)
		} else {
			cfg.Coordination.Port = port
		}
	}

	fmt.Println()

	// Log Level
	fmt.Println("Logging:")
	fmt.Print("Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Printf("Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Println()
	fmt.Println("Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
