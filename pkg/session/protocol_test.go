package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer

	err := WriteFrame(&buf, Command{Type: CmdList})
	require.NoError(t, err)

	data := buf.Bytes()
	require.True(t, bytes.HasSuffix(data, []byte("\n")))
	assert.Equal(t, 1, bytes.Count(data, []byte("\n")))

	var cmd Command
	require.NoError(t, json.Unmarshal(data, &cmd))
	assert.Equal(t, CmdList, cmd.Type)
}

func TestReadFrame(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(`{"type":"list_sessions"}` + "\n"))

	frame, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"list_sessions"}`, string(frame))
}

func TestReadFrame_AccumulatesAcrossFills(t *testing.T) {
	sess := NewSession()
	sess.Append(RoleUser, strings.Repeat("a long message body ", 50))

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Command{Type: CmdUpdate, Session: sess}))

	// A tiny read buffer forces the frame to arrive in pieces
	r := bufio.NewReaderSize(&buf, 16)

	frame, err := ReadFrame(r)
	require.NoError(t, err)

	cmd, err := DecodeCommand(frame)
	require.NoError(t, err)
	require.NotNil(t, cmd.Session)
	assert.Equal(t, sess.ID, cmd.Session.ID)
	assert.Len(t, cmd.Session.Messages, 1)
}

func TestReadFrame_EOFWithoutTerminator(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(`{"type":`))

	frame, err := ReadFrame(r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, `{"type":`, string(frame))
}

func TestReadFrame_EmptyStream(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(""))

	frame, err := ReadFrame(r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, frame)
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		shouldErr bool
	}{
		{"get or create", `{"type":"get_or_create_session"}`, false},
		{"get with id", `{"type":"get_session","id":"8b35b401-9d73-4b3a-8337-9d5b2c4e1f20"}`, false},
		{"update", `{"type":"update_session","session":{"id":"8b35b401-9d73-4b3a-8337-9d5b2c4e1f20","messages":[]}}`, false},
		{"list", `{"type":"list_sessions"}`, false},
		{"unknown type", `{"type":"drop_sessions"}`, true},
		{"missing type", `{"id":"abc"}`, true},
		{"not json", `hogwash`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := DecodeCommand([]byte(tt.payload))
			if tt.shouldErr {
				assert.ErrorIs(t, err, ErrProtocol)
				assert.Nil(t, cmd)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, cmd)
			}
		})
	}
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		shouldErr bool
	}{
		{"session", `{"type":"session","session":{"id":"8b35b401-9d73-4b3a-8337-9d5b2c4e1f20"}}`, false},
		{"sessions", `{"type":"sessions","sessions":[]}`, false},
		{"error", `{"type":"error","error":"timeout"}`, false},
		{"unknown type", `{"type":"pong"}`, true},
		{"not json", `hogwash`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeResponse([]byte(tt.payload))
			if tt.shouldErr {
				assert.ErrorIs(t, err, ErrProtocol)
				assert.Nil(t, resp)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, resp)
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	sess := NewSession()
	sess.Append(RoleUser, "hello")
	sess.Append(RoleAssistant, "hi")

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Response{Type: RespSession, Session: sess}))

	frame, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)

	resp, err := DecodeResponse(frame)
	require.NoError(t, err)
	require.NotNil(t, resp.Session)
	assert.Equal(t, sess.ID, resp.Session.ID)
	assert.True(t, sess.CreatedAt.Equal(resp.Session.CreatedAt))
	require.Len(t, resp.Session.Messages, 2)
	assert.Equal(t, "hello", resp.Session.Messages[0].Text)
	assert.Equal(t, RoleAssistant, resp.Session.Messages[1].Role)
}
