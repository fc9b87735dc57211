package session

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// Coordination defaults. Every invocation on a host converges on the same
// loopback port, so the first one in keeps the store and the rest proxy to
// it.
const (
	DefaultPort         = 7654
	DefaultProbeTimeout = 1 * time.Second

	acquireAttempts = 3
	acquireBackoff  = 150 * time.Millisecond
)

// Mode is the role an invocation settled on.
type Mode string

const (
	// ModeKeeper owns the store and serves every other invocation.
	ModeKeeper Mode = "keeper"
	// ModeClient proxies session calls to the keeper.
	ModeClient Mode = "client"
)

// Rendezvous is how invocations discover and claim the keeper role. Probe
// reports whether a keeper already holds the rendezvous point, Acquire
// claims it, and Dial connects to whoever holds it.
type Rendezvous interface {
	Probe(ctx context.Context) bool
	Acquire() (net.Listener, error)
	Dial(ctx context.Context) (net.Conn, error)
}

// TCPRendezvous coordinates through a fixed loopback port. The bound socket
// is the keepership claim itself; the OS guarantees a single holder.
type TCPRendezvous struct {
	addr         string
	probeTimeout time.Duration
	dialTimeout  time.Duration
}

// NewTCPRendezvous returns a rendezvous on 127.0.0.1:port.
func NewTCPRendezvous(port int, dialTimeout time.Duration) *TCPRendezvous {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	return &TCPRendezvous{
		addr:         fmt.Sprintf("127.0.0.1:%d", port),
		probeTimeout: DefaultProbeTimeout,
		dialTimeout:  dialTimeout,
	}
}

// Probe reports whether another invocation already holds the port.
func (r *TCPRendezvous) Probe(ctx context.Context) bool {
	d := net.Dialer{Timeout: r.probeTimeout}
	conn, err := d.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Acquire binds the coordination port.
func (r *TCPRendezvous) Acquire() (net.Listener, error) {
	return net.Listen("tcp", r.addr)
}

// Dial connects to the keeper.
func (r *TCPRendezvous) Dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: r.dialTimeout}
	return d.DialContext(ctx, "tcp", r.addr)
}

// Config carries the coordination settings.
type Config struct {
	// Dir is the snapshot directory. Empty means ~/.parley/sessions.
	Dir string
	// Port is the loopback coordination port.
	Port int
	// DialTimeout bounds connecting to the keeper.
	DialTimeout time.Duration
	// ReadTimeout bounds waiting for a frame on either side.
	ReadTimeout time.Duration
	// AutosaveInterval is the keeper's periodic re-persist cadence.
	AutosaveInterval time.Duration
	// MetricsPort, when non-zero, has the keeper serve prometheus metrics
	// on loopback.
	MetricsPort int
	// Rendezvous overrides the TCP mechanism, mainly for tests.
	Rendezvous Rendezvous
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.AutosaveInterval <= 0 {
		c.AutosaveInterval = DefaultAutosaveInterval
	}
	return c
}

// Handle is the settled session service for one invocation. Collaborators
// hold a Handle and never branch on the mode behind it.
type Handle struct {
	Service

	mode      Mode
	store     *Store
	listener  *Listener
	autosaver *Autosaver
	metrics   *metricsServer
}

// Mode returns the role this invocation settled on.
func (h *Handle) Mode() Mode {
	return h.mode
}

// Close releases keeper resources. Client handles hold none.
func (h *Handle) Close() error {
	if h.mode != ModeKeeper {
		return nil
	}

	if err := h.autosaver.Stop(); err != nil {
		log.Warn().Err(err).Msg("Failed to stop autosaver")
	}
	h.listener.Stop()

	if h.metrics != nil {
		if err := h.metrics.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}

	return nil
}

// Open settles this invocation's role and returns its session service.
// Probing finds an existing keeper; otherwise binding the port claims the
// role, with the bound socket as the claim. An invocation that keeps losing
// the bind race joins as a client rather than failing.
func Open(ctx context.Context, cfg Config) (*Handle, error) {
	cfg = cfg.withDefaults()

	rv := cfg.Rendezvous
	if rv == nil {
		rv = NewTCPRendezvous(cfg.Port, cfg.DialTimeout)
	}

	for attempt := 1; attempt <= acquireAttempts; attempt++ {
		if rv.Probe(ctx) {
			log.Debug().Int("attempt", attempt).Msg("Keeper already running, joining as client")
			return &Handle{Service: NewClient(rv, cfg.ReadTimeout), mode: ModeClient}, nil
		}

		ln, err := rv.Acquire()
		if err == nil {
			return openKeeper(cfg, ln)
		}

		log.Debug().Err(err).Int("attempt", attempt).Msg("Lost the bind race, probing again")
		time.Sleep(acquireBackoff)
	}

	log.Warn().Int("attempts", acquireAttempts).Msg("Could not settle a role, joining as client")
	return &Handle{Service: NewClient(rv, cfg.ReadTimeout), mode: ModeClient}, nil
}

// openKeeper builds the keeper side: store, snapshot load, listener, and
// autosave. Loading finishes before anything reads the table; connections
// arriving meanwhile wait in the accept backlog of the already bound socket.
func openKeeper(cfg Config, ln net.Listener) (*Handle, error) {
	store, err := NewStore(cfg.Dir)
	if err != nil {
		_ = ln.Close()
		return nil, err
	}

	if err := store.Load(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Failed to load sessions, starting empty")
	}

	listener := NewListener(store, ln, cfg.ReadTimeout)
	autosaver := NewAutosaver(store, cfg.AutosaveInterval)

	go listener.Serve()

	if err := autosaver.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start autosaver")
	}

	var metrics *metricsServer
	if cfg.MetricsPort > 0 {
		metrics = newMetricsServer(cfg.MetricsPort)
		if err := metrics.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start metrics server")
			metrics = nil
		}
	}

	log.Info().Str("addr", ln.Addr().String()).Msg("Keeping the session store for this host")

	return &Handle{
		Service:   store,
		mode:      ModeKeeper,
		store:     store,
		listener:  listener,
		autosaver: autosaver,
		metrics:   metrics,
	}, nil
}
