package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Wire command names. Each connection carries exactly one command and one
// response, both as a single JSON document terminated by a newline.
const (
	CmdGetOrCreate = "get_or_create_session"
	CmdGet         = "get_session"
	CmdUpdate      = "update_session"
	CmdList        = "list_sessions"
)

// Wire response types, framed the same way as commands.
const (
	RespSession  = "session"
	RespSessions = "sessions"
	RespError    = "error"
)

// Command is one request frame. Type selects the operation; ID rides along
// for get_session and Session for update_session.
type Command struct {
	Type    string   `json:"type"`
	ID      string   `json:"id,omitempty"`
	Session *Session `json:"session,omitempty"`
}

// Response is one reply frame. Exactly one of Session, Sessions, or Error
// is populated according to Type.
type Response struct {
	Type     string     `json:"type"`
	Session  *Session   `json:"session,omitempty"`
	Sessions []*Session `json:"sessions,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// WriteFrame marshals v as one JSON document and writes it together with
// the terminating newline in a single call.
func WriteFrame(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one newline-terminated frame, accumulating across TCP
// segment boundaries. The returned bytes exclude the terminator; bytes read
// before an error are returned alongside it.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return line, err
	}
	return bytes.TrimSuffix(line, []byte{'\n'}), nil
}

// DecodeCommand parses a command frame, rejecting unknown command types.
func DecodeCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	switch cmd.Type {
	case CmdGetOrCreate, CmdGet, CmdUpdate, CmdList:
		return &cmd, nil
	}
	return nil, fmt.Errorf("%w: unknown command %q", ErrProtocol, cmd.Type)
}

// DecodeResponse parses a response frame, rejecting unknown response types.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	switch resp.Type {
	case RespSession, RespSessions, RespError:
		return &resp, nil
	}
	return nil, fmt.Errorf("%w: unknown response %q", ErrProtocol, resp.Type)
}
