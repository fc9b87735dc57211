package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/internal/tracing"
)

// DefaultReadTimeout bounds how long either side waits for a frame.
const DefaultReadTimeout = 5 * time.Second

// Listener serves the session store to every other invocation on the host.
// Each accepted connection carries exactly one command and one response.
type Listener struct {
	store       *Store
	ln          net.Listener
	readTimeout time.Duration

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewListener wraps an already bound listener. Binding is the keeper
// election, so it happens before this point.
func NewListener(store *Store, ln net.Listener, readTimeout time.Duration) *Listener {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	return &Listener{
		store:       store,
		ln:          ln,
		readTimeout: readTimeout,
	}
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts connections until Stop closes the socket. A failing
// connection never takes the loop down with it.
func (l *Listener) Serve() {
	log.Info().Str("addr", l.ln.Addr().String()).Msg("Session listener started")

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn().Err(err).Msg("Accept failed")
			continue
		}

		l.wg.Add(1)
		go l.handleConn(conn)
	}
}

// Stop closes the listening socket and waits for in-flight connections.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.mu.Unlock()

	_ = l.ln.Close()
	l.wg.Wait()

	log.Info().Msg("Session listener stopped")
}

// handleConn runs one command/response exchange and closes the connection.
func (l *Listener) handleConn(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	connID, _ := gonanoid.New()
	logger := log.With().Str("conn_id", connID).Logger()

	_ = conn.SetReadDeadline(time.Now().Add(l.readTimeout))

	frame, err := ReadFrame(bufio.NewReader(conn))
	if err != nil {
		if isTimeout(err) {
			logger.Warn().Msg("Timed out waiting for command")
			l.reply(conn, logger, Response{Type: RespError, Error: "timeout"})
			return
		}
		if errors.Is(err, io.EOF) && len(frame) == 0 {
			// Role probes connect and hang up without sending anything.
			logger.Debug().Msg("Client disconnected before sending a command")
			return
		}
		logger.Warn().Err(err).Msg("Failed to read command")
		l.reply(conn, logger, Response{Type: RespError, Error: "invalid command format"})
		return
	}

	cmd, err := DecodeCommand(frame)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to decode command")
		l.reply(conn, logger, Response{Type: RespError, Error: "invalid command format"})
		return
	}

	ctx := tracing.WithConnID(context.Background(), connID)
	l.reply(conn, logger, l.dispatch(ctx, logger, cmd))
}

// reply writes one response frame, logging rather than failing on error.
func (l *Listener) reply(conn net.Conn, logger zerolog.Logger, resp Response) {
	if err := WriteFrame(conn, resp); err != nil {
		logger.Debug().Err(err).Msg("Failed to write response")
	}
}

// dispatch times, counts, and audits the exchange around the handler.
func (l *Listener) dispatch(ctx context.Context, logger zerolog.Logger, cmd *Command) Response {
	start := time.Now()
	resp := l.handle(ctx, logger, cmd)

	success := resp.Type != RespError
	observability.RecordCommand(cmd.Type, time.Since(start), success)

	status := "success"
	if !success {
		status = "failure"
	}
	observability.RecordCommandAudit(ctx, cmd.Type, tracing.GetConnID(ctx), status, nil)

	return resp
}

func (l *Listener) handle(ctx context.Context, logger zerolog.Logger, cmd *Command) Response {
	switch cmd.Type {
	case CmdGetOrCreate:
		sess, err := l.store.GetOrCreate(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create session")
			return Response{Type: RespError, Error: err.Error()}
		}
		return Response{Type: RespSession, Session: sess}

	case CmdGet:
		id, err := uuid.Parse(cmd.ID)
		if err != nil {
			return Response{Type: RespError, Error: "invalid command format"}
		}
		sess, err := l.store.Get(ctx, id)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to get session")
			return Response{Type: RespError, Error: err.Error()}
		}
		if sess == nil {
			return Response{Type: RespError, Error: "session not found: " + cmd.ID}
		}
		return Response{Type: RespSession, Session: sess}

	case CmdUpdate:
		if cmd.Session == nil || cmd.Session.Validate() != nil {
			return Response{Type: RespError, Error: "invalid command format"}
		}
		sess, err := l.store.Update(ctx, cmd.Session)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to update session")
			return Response{Type: RespError, Error: err.Error()}
		}
		return Response{Type: RespSession, Session: sess}

	case CmdList:
		sessions, err := l.store.List(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to list sessions")
			return Response{Type: RespError, Error: err.Error()}
		}
		return Response{Type: RespSessions, Sessions: sessions}
	}

	return Response{Type: RespError, Error: "invalid command format"}
}
