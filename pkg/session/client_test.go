package session

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestKeeper(t *testing.T) (*Store, *testRendezvous) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	rv := &testRendezvous{}
	ln, err := rv.Acquire()
	require.NoError(t, err)

	l := NewListener(store, ln, DefaultReadTimeout)
	go l.Serve()
	t.Cleanup(l.Stop)

	return store, rv
}

// setupSilentServer accepts connections and never replies.
func setupSilentServer(t *testing.T) *testRendezvous {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				_, _ = io.Copy(io.Discard, c)
			}(conn)
		}
	}()

	return &testRendezvous{addr: ln.Addr().String()}
}

// setupGarbageServer reads one frame and answers with something unframed.
func setupGarbageServer(t *testing.T) *testRendezvous {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				_, _ = ReadFrame(bufio.NewReader(c))
				_, _ = c.Write([]byte("hogwash\n"))
			}(conn)
		}
	}()

	return &testRendezvous{addr: ln.Addr().String()}
}

func TestClient_GetOrCreate(t *testing.T) {
	store, rv := setupTestKeeper(t)
	client := NewClient(rv, DefaultReadTimeout)
	ctx := context.Background()

	sess, err := client.GetOrCreate(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEqual(t, uuid.Nil, sess.ID)

	// The keeper holds it, so it was no local fallback
	stored, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestClient_GetOrCreate_LocalFallback(t *testing.T) {
	client := NewClient(unreachableRendezvous{}, DefaultReadTimeout)

	sess, err := client.GetOrCreate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEqual(t, uuid.Nil, sess.ID)
	assert.Empty(t, sess.Messages)
}

func TestClient_GetOrCreate_TimeoutFallback(t *testing.T) {
	rv := setupSilentServer(t)
	client := NewClient(rv, 100*time.Millisecond)

	sess, err := client.GetOrCreate(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sess)
}

func TestClient_Get(t *testing.T) {
	store, rv := setupTestKeeper(t)
	client := NewClient(rv, DefaultReadTimeout)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx)
	require.NoError(t, err)

	got, err := client.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)
}

func TestClient_Get_Missing(t *testing.T) {
	_, rv := setupTestKeeper(t)
	client := NewClient(rv, DefaultReadTimeout)

	got, err := client.Get(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestClient_Get_Unreachable(t *testing.T) {
	client := NewClient(unreachableRendezvous{}, DefaultReadTimeout)

	_, err := client.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.True(t, IsUnavailable(err))
}

func TestClient_Update(t *testing.T) {
	store, rv := setupTestKeeper(t)
	client := NewClient(rv, DefaultReadTimeout)
	ctx := context.Background()

	sess, err := client.GetOrCreate(ctx)
	require.NoError(t, err)
	created := sess.CreatedAt

	sess.Append(RoleUser, "hello")
	sess.Append(RoleAssistant, "hi")

	updated, err := client.Update(ctx, sess)
	require.NoError(t, err)
	require.Len(t, updated.Messages, 2)
	assert.True(t, created.Equal(updated.CreatedAt))

	stored, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Messages, 2)
}

func TestClient_Update_NilSession(t *testing.T) {
	_, rv := setupTestKeeper(t)
	client := NewClient(rv, DefaultReadTimeout)

	_, err := client.Update(context.Background(), nil)
	assert.Error(t, err)
}

func TestClient_Update_Unreachable(t *testing.T) {
	client := NewClient(unreachableRendezvous{}, DefaultReadTimeout)

	sess := NewSession()
	sess.Append(RoleUser, "will not arrive")

	_, err := client.Update(context.Background(), sess)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestClient_Update_Timeout(t *testing.T) {
	rv := setupSilentServer(t)
	client := NewClient(rv, 100*time.Millisecond)

	_, err := client.Update(context.Background(), NewSession())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsUnavailable(err))
}

func TestClient_Update_RemoteError(t *testing.T) {
	_, rv := setupTestKeeper(t)
	client := NewClient(rv, DefaultReadTimeout)

	// The keeper rejects the bad role and the client surfaces it typed
	sess := NewSession()
	sess.Messages = append(sess.Messages, ChatEntry{Role: Role("system"), Text: "x"})

	_, err := client.Update(context.Background(), sess)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemote)
	assert.False(t, IsUnavailable(err))
}

func TestClient_List(t *testing.T) {
	store, rv := setupTestKeeper(t)
	client := NewClient(rv, DefaultReadTimeout)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx)
	require.NoError(t, err)
	_, err = store.GetOrCreate(ctx)
	require.NoError(t, err)

	sessions, err := client.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestClient_List_Empty(t *testing.T) {
	_, rv := setupTestKeeper(t)
	client := NewClient(rv, DefaultReadTimeout)

	sessions, err := client.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestClient_List_Unreachable(t *testing.T) {
	client := NewClient(unreachableRendezvous{}, DefaultReadTimeout)

	_, err := client.List(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestClient_ProtocolError(t *testing.T) {
	rv := setupGarbageServer(t)
	client := NewClient(rv, DefaultReadTimeout)

	_, err := client.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.False(t, IsUnavailable(err))
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(ErrConnectionFailed))
	assert.True(t, IsUnavailable(ErrTimeout))
	assert.False(t, IsUnavailable(ErrProtocol))
	assert.False(t, IsUnavailable(ErrRemote))
	assert.False(t, IsUnavailable(nil))
}
