package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAutosaver(t *testing.T) {
	store := setupTestStore(t)

	a := NewAutosaver(store, time.Minute)
	assert.NotNil(t, a)
	assert.Equal(t, time.Minute, a.interval)
	assert.False(t, a.IsRunning())
}

func TestNewAutosaver_DefaultInterval(t *testing.T) {
	store := setupTestStore(t)

	a := NewAutosaver(store, 0)
	assert.Equal(t, DefaultAutosaveInterval, a.interval)
}

func TestAutosaverStartStop(t *testing.T) {
	store := setupTestStore(t)
	a := NewAutosaver(store, time.Hour)

	// Test start
	err := a.Start()
	assert.NoError(t, err)
	assert.True(t, a.IsRunning())

	// Test start again (should fail)
	err = a.Start()
	assert.Error(t, err)

	// Test stop
	err = a.Stop()
	assert.NoError(t, err)
	assert.False(t, a.IsRunning())

	// Test stop again (should fail)
	err = a.Stop()
	assert.Error(t, err)
}

func TestAutosaverRewritesSnapshots(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx)
	require.NoError(t, err)

	// Remove the snapshot so only the autosave loop can bring it back
	require.NoError(t, os.Remove(store.snapshotPath(sess.ID)))

	a := NewAutosaver(store, 50*time.Millisecond)
	require.NoError(t, a.Start())
	defer a.Stop()

	// Give the loop a few ticks
	time.Sleep(200 * time.Millisecond)

	_, err = os.Stat(store.snapshotPath(sess.ID))
	assert.NoError(t, err)
}
