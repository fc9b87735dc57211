package session

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServer(t *testing.T) {
	ms := newMetricsServer(0)
	require.NoError(t, ms.Start())
	defer ms.Stop()

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get("http://" + ms.addr + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"status":"ok"`)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get("http://" + ms.addr + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "active_sessions")
	})
}

func TestMetricsServerStop(t *testing.T) {
	ms := newMetricsServer(0)
	require.NoError(t, ms.Start())

	require.NoError(t, ms.Stop())

	_, err := http.Get("http://" + ms.addr + "/healthz")
	assert.Error(t, err)
}
