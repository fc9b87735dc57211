package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/pkg/session"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Long:  `List every stored chat session with creation and last-activity times.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

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

	sessions, err := handle.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	sortSessionsByActivity(sessions)

	fmt.Println("Available sessions:")
	for _, sess := range sessions {
		fmt.Println(formatSessionLine(sess))
	}

	return nil
}

// sortSessionsByActivity orders the most recently active session first.
func sortSessionsByActivity(sessions []*session.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActive.After(sessions[j].LastActive)
	})
}

func formatSessionLine(sess *session.Session) string {
	return fmt.Sprintf("%s: created at %s, last active at %s, %d messages",
		sess.ID,
		sess.CreatedAt.Local().Format(timestampLayout),
		sess.LastActive.Local().Format(timestampLayout),
		len(sess.Messages))
}
