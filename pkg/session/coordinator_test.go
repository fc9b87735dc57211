package session

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRendezvous coordinates through an ephemeral loopback port so parallel
// tests never collide on the fixed one.
type testRendezvous struct {
	mu   sync.Mutex
	addr string
}

func (r *testRendezvous) Probe(ctx context.Context) bool {
	r.mu.Lock()
	addr := r.addr
	r.mu.Unlock()

	if addr == "" {
		return false
	}
	d := net.Dialer{Timeout: time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (r *testRendezvous) Acquire() (net.Listener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.addr = ln.Addr().String()
	r.mu.Unlock()

	return ln, nil
}

func (r *testRendezvous) Dial(ctx context.Context) (net.Conn, error) {
	r.mu.Lock()
	addr := r.addr
	r.mu.Unlock()

	if addr == "" {
		return nil, fmt.Errorf("nothing bound")
	}
	d := net.Dialer{Timeout: time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

// unreachableRendezvous never finds a keeper and never wins the bind.
type unreachableRendezvous struct{}

func (unreachableRendezvous) Probe(context.Context) bool { return false }

func (unreachableRendezvous) Acquire() (net.Listener, error) {
	return nil, fmt.Errorf("address already in use")
}

func (unreachableRendezvous) Dial(context.Context) (net.Conn, error) {
	return nil, fmt.Errorf("connection refused")
}

func testOpenConfig(t *testing.T, rv Rendezvous) Config {
	return Config{
		Dir:              t.TempDir(),
		Rendezvous:       rv,
		AutosaveInterval: time.Hour,
	}
}

func TestOpen_FirstBecomesKeeper(t *testing.T) {
	ctx := context.Background()

	h, err := Open(ctx, testOpenConfig(t, &testRendezvous{}))
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, ModeKeeper, h.Mode())

	sess, err := h.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.NotNil(t, sess)
}

func TestOpen_SecondBecomesClient(t *testing.T) {
	ctx := context.Background()
	rv := &testRendezvous{}
	cfg := testOpenConfig(t, rv)

	keeper, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer keeper.Close()
	require.Equal(t, ModeKeeper, keeper.Mode())

	client, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, ModeClient, client.Mode())
}

func TestOpen_SharedStateAcrossHandles(t *testing.T) {
	ctx := context.Background()
	rv := &testRendezvous{}
	cfg := testOpenConfig(t, rv)

	keeper, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer keeper.Close()

	client, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	// Created through the client, visible to the keeper
	sess, err := client.GetOrCreate(ctx)
	require.NoError(t, err)

	got, err := keeper.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Updated through the client, history visible everywhere
	sess.Append(RoleUser, "hello from the client")
	_, err = client.Update(ctx, sess)
	require.NoError(t, err)

	got, err = keeper.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello from the client", got.Messages[0].Text)

	fromKeeper, err := keeper.List(ctx)
	require.NoError(t, err)
	fromClient, err := client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(fromKeeper), len(fromClient))
}

func TestOpen_ReloadAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := Config{Dir: dir, Rendezvous: &testRendezvous{}, AutosaveInterval: time.Hour}

	keeper, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, ModeKeeper, keeper.Mode())

	sess, err := keeper.GetOrCreate(ctx)
	require.NoError(t, err)
	sess.Append(RoleUser, "before the restart")
	sess.Append(RoleAssistant, "noted")
	_, err = keeper.Update(ctx, sess)
	require.NoError(t, err)

	require.NoError(t, keeper.Close())

	// A new keeper over the same directory restores the history
	cfg.Rendezvous = &testRendezvous{}
	reopened, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, ModeKeeper, reopened.Mode())

	got, err := reopened.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "before the restart", got.Messages[0].Text)
	assert.True(t, sess.CreatedAt.Equal(got.CreatedAt))
}

func TestOpen_BindRaceFallsBackToClient(t *testing.T) {
	ctx := context.Background()

	h, err := Open(ctx, testOpenConfig(t, unreachableRendezvous{}))
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, ModeClient, h.Mode())

	// Degraded, not broken: sessions still come back locally
	sess, err := h.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.NotNil(t, sess)
}

func TestHandle_CloseClientIsNoop(t *testing.T) {
	ctx := context.Background()
	rv := &testRendezvous{}
	cfg := testOpenConfig(t, rv)

	keeper, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer keeper.Close()

	client, err := Open(ctx, cfg)
	require.NoError(t, err)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}

func TestHandle_CloseKeeperReleasesPort(t *testing.T) {
	ctx := context.Background()
	rv := &testRendezvous{}
	cfg := testOpenConfig(t, rv)

	keeper, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, ModeKeeper, keeper.Mode())

	require.NoError(t, keeper.Close())

	assert.False(t, rv.Probe(ctx))
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultDialTimeout, cfg.DialTimeout)
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, DefaultAutosaveInterval, cfg.AutosaveInterval)

	custom := Config{
		Port:             9999,
		DialTimeout:      time.Second,
		ReadTimeout:      2 * time.Second,
		AutosaveInterval: time.Minute,
	}.withDefaults()

	assert.Equal(t, 9999, custom.Port)
	assert.Equal(t, time.Second, custom.DialTimeout)
	assert.Equal(t, 2*time.Second, custom.ReadTimeout)
	assert.Equal(t, time.Minute, custom.AutosaveInterval)
}

func TestNewTCPRendezvous(t *testing.T) {
	rv := NewTCPRendezvous(7654, 0)

	assert.Equal(t, "127.0.0.1:7654", rv.addr)
	assert.Equal(t, DefaultProbeTimeout, rv.probeTimeout)
	assert.Equal(t, DefaultDialTimeout, rv.dialTimeout)
}
