package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/internal/tracing"
	"github.com/parleyhq/parley/pkg/session"
)

const version = "0.1.0"

const timestampLayout = "2006-01-02 15:04:05"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command. Without a subcommand it opens a chat.
var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - shared chat sessions from your terminal",
	Long: `Parley is a terminal chat client for Anthropic and OpenAI models.
Sessions are shared between every parley process on the host: the first
invocation keeps the session store and later ones talk to it, so a
conversation started in one terminal can be picked up in another.`,
	Version: version,
	Args:    cobra.NoArgs,
	RunE:    runChat,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.parley/parley.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// loadConfig resolves the configuration for this invocation.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	return cfg, nil
}

// setupRuntime loads the configuration and installs logging, tracing, and
// the audit trail for commands that touch the session store.
func setupRuntime() (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := tracing.InitOpenTelemetry("parley", version); err != nil {
		lg.Warn().Err(err).Msg("Failed to initialize tracing")
	}

	initAuditTrail(cfg)

	return cfg, lg, nil
}

// initAuditTrail points the audit log at the data directory. On failure
// events still land on stderr through the fallback logger.
func initAuditTrail(cfg *config.Config) {
	if cfg.DataDir == "" {
		return
	}
	if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize audit log")
	}
}

// openSessions settles this invocation as keeper or client.
func openSessions(ctx context.Context, cfg *config.Config) (*session.Handle, error) {
	handle, err := session.Open(ctx, session.Config{
		Dir:              cfg.SessionsDir(),
		Port:             cfg.Coordination.Port,
		DialTimeout:      time.Duration(cfg.Coordination.DialTimeout) * time.Second,
		ReadTimeout:      time.Duration(cfg.Coordination.ReadTimeout) * time.Second,
		AutosaveInterval: time.Duration(cfg.Coordination.AutosaveSeconds) * time.Second,
		MetricsPort:      cfg.Coordination.MetricsPort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return handle, nil
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
