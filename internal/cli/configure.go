package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/observability"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage parley configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Run interactive configuration wizard",
	Long: `Run an interactive configuration wizard to set up parley.
The wizard will guide you through configuring API keys, the default
provider, and the coordination port.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Long:  `Print the resolved configuration with API keys masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration value",
	Long: `Set one configuration value and save the file.

Supported keys:
  providers.default
  anthropic.api_key, anthropic.model
  openai.api_key, openai.model
  coordination.port
  logging.level`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	// Create wizard
	wizard := config.NewWizard()

	// Run wizard
	cfg, err := wizard.Run()
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Save configuration
	loader := config.NewLoader(cfgFile)
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	configPath := loader.GetConfigPath()

	// The wizard config has no data directory yet; reload so the loader
	// fills the home-relative defaults before the audit entry is written
	if saved, err := loader.Load(); err == nil {
		initAuditTrail(saved)
		defer observability.GetAuditLogger().Close()
	}

	observability.RecordConfigAudit(context.Background(), "init", "cli", map[string]interface{}{
		"path": configPath,
	})

	fmt.Printf("\nConfiguration saved to: %s\n", configPath)
	fmt.Println("\nYou can now start chatting with: parley")

	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	masked := *cfg
	masked.Providers.Anthropic.APIKey = maskAPIKey(cfg.Providers.Anthropic.APIKey)
	masked.Providers.OpenAI.APIKey = maskAPIKey(cfg.Providers.OpenAI.APIKey)

	fmt.Println(masked.String())

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	initAuditTrail(cfg)
	defer observability.GetAuditLogger().Close()

	if err := applyConfigValue(cfg, key, value); err != nil {
		return err
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	// The value stays out of the audit trail; keys may be secrets
	observability.RecordConfigAudit(context.Background(), "set", "cli", map[string]interface{}{
		"key": key,
	})

	fmt.Printf("Updated %s in %s\n", key, loader.GetConfigPath())

	return nil
}

// applyConfigValue routes one key to its config field, validating the
// formats that have one.
func applyConfigValue(cfg *config.Config, key, value string) error {
	v := config.NewValidator()

	switch key {
	case "providers.default":
		if err := v.ValidateProvider(value); err != nil {
			return err
		}
		cfg.Providers.Default = value
	case "anthropic.api_key":
		if err := v.ValidateAPIKey(value, "anthropic"); err != nil {
			return err
		}
		cfg.Providers.Anthropic.APIKey = value
	case "anthropic.model":
		if err := v.ValidateModel(value); err != nil {
			return err
		}
		cfg.Providers.Anthropic.Model = value
	case "openai.api_key":
		if err := v.ValidateAPIKey(value, "openai"); err != nil {
			return err
		}
		cfg.Providers.OpenAI.APIKey = value
	case "openai.model":
		if err := v.ValidateModel(value); err != nil {
			return err
		}
		cfg.Providers.OpenAI.Model = value
	case "coordination.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", value, err)
		}
		if err := v.ValidatePort(port); err != nil {
			return err
		}
		cfg.Coordination.Port = port
	case "logging.level":
		if err := v.ValidateLogLevel(value); err != nil {
			return err
		}
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	return nil
}

// maskAPIKey keeps enough of a key to recognize it without exposing it.
func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 12 {
		return "********"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
