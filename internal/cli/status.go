package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/pkg/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session keeper status",
	Long: `Show whether a session keeper is serving on the coordination port.
There is no daemon to manage; whichever parley invocation binds the port
first keeps the sessions for everyone else.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rv := session.NewTCPRendezvous(
		cfg.Coordination.Port,
		time.Duration(cfg.Coordination.DialTimeout)*time.Second,
	)

	if rv.Probe(context.Background()) {
		fmt.Printf("Status: keeper running on port %d\n", cfg.Coordination.Port)
	} else {
		fmt.Printf("Status: no keeper on port %d\n", cfg.Coordination.Port)
	}

	fmt.Printf("Config: %s\n", config.NewLoader(cfgFile).GetConfigPath())
	fmt.Printf("Sessions dir: %s\n", cfg.SessionsDir())
	fmt.Printf("Stored sessions: %d\n", countSnapshots(cfg.SessionsDir()))

	return nil
}

// countSnapshots counts snapshot files without claiming the keeper role.
func countSnapshots(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			count++
		}
	}
	return count
}
