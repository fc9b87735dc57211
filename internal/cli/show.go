package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/observability"
)

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's details",
	Long:  `Show the creation time, last activity, and message count of one session.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	cfg, lg, err := setupRuntime()
	if err != nil {
		return err
	}
	defer lg.Close()
	defer observability.GetAuditLogger().Close()

	handle, err := openSessions(ctx, cfg)
	if err != nil {
		return err
	}
	defer handle.Close()

	sess, err := handle.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch session: %w", err)
	}
	if sess == nil {
		return fmt.Errorf("session not found: %s", id)
	}

	fmt.Printf("Session details for %s:\n", sess.ID)
	fmt.Printf("Created at: %s\n", sess.CreatedAt.Local().Format(timestampLayout))
	fmt.Printf("Last active: %s\n", sess.LastActive.Local().Format(timestampLayout))
	fmt.Printf("Message count: %d\n", len(sess.Messages))

	return nil
}
