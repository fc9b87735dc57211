package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/pkg/chat"
	"github.com/parleyhq/parley/pkg/provider"
	"github.com/parleyhq/parley/pkg/session"
)

const defaultSystemPrompt = "You are a helpful assistant."

var (
	chatSessionID string
	chatProvider  string
	chatModel     string
	chatSystem    string
)

func init() {
	rootCmd.Flags().StringVar(&chatSessionID, "session", "", "session id to resume")
	rootCmd.Flags().StringVar(&chatProvider, "provider", "", "provider to chat with (anthropic, openai)")
	rootCmd.Flags().StringVar(&chatModel, "model", "", "model override for this conversation")
	rootCmd.Flags().StringVar(&chatSystem, "system", defaultSystemPrompt, "system prompt")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, lg, err := setupRuntime()
	if err != nil {
		return err
	}
	defer lg.Close()
	defer observability.GetAuditLogger().Close()

	name, providerCfg, err := cfg.Provider(chatProvider)
	if err != nil {
		return err
	}

	prov, err := provider.New(name, provider.Config{
		APIKey: providerCfg.APIKey,
		Model:  providerCfg.Model,
	})
	if err != nil {
		return fmt.Errorf("%w (run 'parley config init' or export the provider's API key)", err)
	}

	handle, err := openSessions(ctx, cfg)
	if err != nil {
		return err
	}
	defer handle.Close()

	log.Info().
		Str("mode", string(handle.Mode())).
		Str("provider", name).
		Msg("Chat starting")

	sess, err := resolveSession(ctx, handle, chatSessionID)
	if err != nil {
		return err
	}

	observability.RecordCommandAudit(ctx, "chat", "cli", "success", map[string]interface{}{
		"session_id": sess.ID.String(),
		"provider":   name,
		"mode":       string(handle.Mode()),
	})

	repl := chat.New(handle, prov, sess, chat.Options{
		Model:        chatModel,
		SystemPrompt: chatSystem,
	})

	return repl.Run(ctx)
}

// resolveSession resumes the requested session or falls back to a fresh one.
func resolveSession(ctx context.Context, svc session.Service, id string) (*session.Session, error) {
	if id == "" {
		sess, err := svc.GetOrCreate(ctx)
		if err != nil {
			return nil, err
		}
		observability.RecordSessionAudit(ctx, "created", "cli", sess.ID.String())
		return sess, nil
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", id, err)
	}

	sess, err := svc.Get(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		fmt.Fprintf(os.Stderr, "Session not found: %s, creating a new session\n", id)
		sess, err = svc.GetOrCreate(ctx)
		if err != nil {
			return nil, err
		}
		observability.RecordSessionAudit(ctx, "created", "cli", sess.ID.String())
		return sess, nil
	}

	observability.RecordSessionAudit(ctx, "resumed", "cli", sess.ID.String())
	return sess, nil
}
