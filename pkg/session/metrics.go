package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/observability"
)

// metricsServer exposes the keeper's prometheus metrics on loopback.
type metricsServer struct {
	server *http.Server
	addr   string
}

func newMetricsServer(port int) *metricsServer {
	observability.EnsureRegistered()

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &metricsServer{
		server: &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%d", port),
			Handler: mux,
		},
	}
}

// Start binds the metrics port and serves in the background until Stop.
func (m *metricsServer) Start() error {
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return err
	}
	m.addr = ln.Addr().String()

	go func() {
		if err := m.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	log.Info().Str("addr", m.addr).Msg("Metrics server started")
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight scrapes.
func (m *metricsServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}
