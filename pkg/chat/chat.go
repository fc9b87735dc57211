// Package chat is the line-oriented conversation loop. Each turn sends the
// whole session history to the provider and persists the whole history back
// through the session service.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/tracing"
	"github.com/parleyhq/parley/pkg/provider"
	"github.com/parleyhq/parley/pkg/session"
)

// REPL drives one conversation over a session.
type REPL struct {
	svc  session.Service
	prov provider.Provider
	sess *session.Session

	in  *bufio.Scanner
	out io.Writer

	model        string
	systemPrompt string

	persistWarned bool
}

// Options configures a REPL.
type Options struct {
	// Input defaults to os.Stdin.
	Input io.Reader
	// Output defaults to os.Stdout.
	Output io.Writer
	// Model overrides the provider's default model.
	Model string
	// SystemPrompt is sent ahead of the history when set.
	SystemPrompt string
}

// New creates a REPL bound to a session.
func New(svc session.Service, prov provider.Provider, sess *session.Session, opts Options) *REPL {
	in := opts.Input
	if in == nil {
		in = os.Stdin
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	return &REPL{
		svc:          svc,
		prov:         prov,
		sess:         sess,
		in:           scanner,
		out:          out,
		model:        opts.Model,
		systemPrompt: opts.SystemPrompt,
	}
}

// Session returns the session as last persisted or mutated.
func (r *REPL) Session() *session.Session {
	return r.sess
}

// Run loops until /exit or end of input.
func (r *REPL) Run(ctx context.Context) error {
	ctx = tracing.WithSessionID(ctx, r.sess.ID.String())

	if len(r.sess.Messages) > 0 {
		fmt.Fprintf(r.out, "Resumed session %s (%d messages)\n", r.sess.ID, len(r.sess.Messages))
	} else {
		fmt.Fprintf(r.out, "Started session %s\n", r.sess.ID)
	}
	fmt.Fprintln(r.out, "Type /help for commands.")

	for {
		fmt.Fprint(r.out, "> ")
		if !r.in.Scan() {
			if err := r.in.Err(); err != nil {
				return err
			}
			fmt.Fprintln(r.out)
			return nil
		}

		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if r.command(line) {
				return nil
			}
			continue
		}

		if err := r.turn(ctx, line); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

// command runs one slash command, reporting whether the REPL should exit.
func (r *REPL) command(line string) bool {
	switch line {
	case "/exit", "/quit":
		return true
	case "/history":
		r.showHistory()
	case "/help":
		fmt.Fprintln(r.out, "/help - show this help message")
		fmt.Fprintln(r.out, "/history - show the conversation so far")
		fmt.Fprintln(r.out, "/exit - leave the chat")
	default:
		fmt.Fprintf(r.out, "Unknown command %q. Type /help to see available commands.\n", line)
	}
	return false
}

func (r *REPL) showHistory() {
	if len(r.sess.Messages) == 0 {
		fmt.Fprintln(r.out, "No messages yet.")
		return
	}
	for _, entry := range r.sess.Messages {
		switch entry.Role {
		case session.RoleUser:
			fmt.Fprintf(r.out, "you: %s\n", entry.Text)
		case session.RoleAssistant:
			fmt.Fprintf(r.out, "assistant: %s\n", entry.Text)
		}
	}
}

// turn runs one user line through the provider and persists the history.
// A provider failure still persists the typed line so nothing is lost.
func (r *REPL) turn(ctx context.Context, line string) error {
	r.sess.Append(session.RoleUser, line)

	resp, err := r.prov.Complete(ctx, r.request())
	if err != nil {
		r.persist(ctx)
		return fmt.Errorf("completion failed: %w", err)
	}

	fmt.Fprintln(r.out, resp.Text)

	r.sess.Append(session.RoleAssistant, resp.Text)
	r.persist(ctx)

	return nil
}

// request converts the session history to provider messages.
func (r *REPL) request() provider.Request {
	messages := make([]provider.Message, 0, len(r.sess.Messages))
	for _, entry := range r.sess.Messages {
		messages = append(messages, provider.Message{
			Role:    string(entry.Role),
			Content: entry.Text,
		})
	}

	return provider.Request{
		Model:        r.model,
		Messages:     messages,
		SystemPrompt: r.systemPrompt,
	}
}

// persist sends the whole history to the keeper. When no keeper is
// reachable the conversation keeps going unpersisted, warned about once.
func (r *REPL) persist(ctx context.Context) {
	updated, err := r.svc.Update(ctx, r.sess)
	if err != nil {
		if session.IsUnavailable(err) {
			if !r.persistWarned {
				r.persistWarned = true
				fmt.Fprintln(r.out, "Warning: session keeper unreachable; this conversation is not being persisted.")
			}
		} else {
			fmt.Fprintf(r.out, "Warning: failed to save session: %v\n", err)
		}
		log.Warn().Err(err).Msg("Failed to persist session")
		return
	}

	// Adopt the stored copy so the keeper's stamps stay authoritative
	r.sess = updated
}
