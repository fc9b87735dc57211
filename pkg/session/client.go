package session

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/internal/tracing"
)

// DefaultDialTimeout bounds connecting to the keeper.
const DefaultDialTimeout = 5 * time.Second

// Client is the thin session service used by every invocation that did not
// win the keeper role. Each call opens one connection, writes one command,
// and reads one response under the read timeout.
type Client struct {
	rv          Rendezvous
	readTimeout time.Duration
}

// NewClient creates a client that reaches the keeper through rv.
func NewClient(rv Rendezvous, readTimeout time.Duration) *Client {
	observability.EnsureRegistered()

	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	return &Client{rv: rv, readTimeout: readTimeout}
}

// GetOrCreate asks the keeper for a fresh session. When no keeper answers in
// time it degrades to a local, unpersisted session instead of failing. The
// local session is invisible to List until an Update later reaches a keeper.
func (c *Client) GetOrCreate(ctx context.Context) (*Session, error) {
	resp, err := c.roundTrip(ctx, Command{Type: CmdGetOrCreate})
	if err != nil {
		if IsUnavailable(err) {
			log.Warn().Err(err).Msg("Session keeper unreachable, creating local session")
			observability.RecordLocalFallback()
			return NewSession(), nil
		}
		return nil, err
	}

	switch resp.Type {
	case RespSession:
		if resp.Session == nil {
			return nil, fmt.Errorf("%w: session response without a session", ErrProtocol)
		}
		return resp.Session, nil
	case RespError:
		return nil, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	return nil, fmt.Errorf("%w: unexpected response %q", ErrProtocol, resp.Type)
}

// Get fetches a session by id. Absence is (nil, nil), including when the
// keeper reports the id unknown.
func (c *Client) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	resp, err := c.roundTrip(ctx, Command{Type: CmdGet, ID: id.String()})
	if err != nil {
		return nil, err
	}

	switch resp.Type {
	case RespSession:
		if resp.Session == nil {
			return nil, fmt.Errorf("%w: session response without a session", ErrProtocol)
		}
		return resp.Session, nil
	case RespError:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unexpected response %q", ErrProtocol, resp.Type)
}

// Update sends the whole session for storage and returns the stored copy.
// There is no local fallback here; failures surface typed.
func (c *Client) Update(ctx context.Context, sess *Session) (*Session, error) {
	if sess == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}

	resp, err := c.roundTrip(ctx, Command{Type: CmdUpdate, Session: sess})
	if err != nil {
		return nil, err
	}

	switch resp.Type {
	case RespSession:
		if resp.Session == nil {
			return nil, fmt.Errorf("%w: session response without a session", ErrProtocol)
		}
		return resp.Session, nil
	case RespError:
		return nil, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	return nil, fmt.Errorf("%w: unexpected response %q", ErrProtocol, resp.Type)
}

// List returns every session the keeper holds.
func (c *Client) List(ctx context.Context) ([]*Session, error) {
	resp, err := c.roundTrip(ctx, Command{Type: CmdList})
	if err != nil {
		return nil, err
	}

	switch resp.Type {
	case RespSessions:
		return resp.Sessions, nil
	case RespError:
		return nil, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	return nil, fmt.Errorf("%w: unexpected response %q", ErrProtocol, resp.Type)
}

// roundTrip runs one command/response exchange on a fresh connection.
func (c *Client) roundTrip(ctx context.Context, cmd Command) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "parley.session", "client."+cmd.Type)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	conn, err := c.rv.Dial(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer conn.Close()

	if err := WriteFrame(conn, cmd); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))

	frame, err := ReadFrame(bufio.NewReader(conn))
	if err != nil {
		span.RecordError(err)
		if isTimeout(err) {
			logger.Debug().Str("command", cmd.Type).Msg("Timed out waiting for keeper response")
			return nil, fmt.Errorf("%w: reading response", ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	resp, err := DecodeResponse(frame)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return resp, nil
}
