package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/observability"
)

// DefaultAutosaveInterval is how often the keeper re-persists every session.
const DefaultAutosaveInterval = 30 * time.Second

// Autosaver periodically writes every in-memory session back to disk. It
// backstops the synchronous per-mutation saves for the keeper's lifetime.
type Autosaver struct {
	store    *Store
	interval time.Duration
	stopCh   chan struct{}
	running  bool
}

// NewAutosaver creates an autosaver. A non-positive interval uses the
// default.
func NewAutosaver(store *Store, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}

	return &Autosaver{
		store:    store,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the autosave loop.
func (a *Autosaver) Start() error {
	if a.running {
		return fmt.Errorf("autosaver is already running")
	}

	a.running = true
	go a.run()

	log.Info().Dur("interval", a.interval).Msg("Autosave started")

	return nil
}

// Stop stops the autosave loop.
func (a *Autosaver) Stop() error {
	if !a.running {
		return fmt.Errorf("autosaver is not running")
	}

	close(a.stopCh)
	a.running = false

	log.Info().Msg("Autosave stopped")

	return nil
}

// IsRunning reports whether the loop is active.
func (a *Autosaver) IsRunning() bool {
	return a.running
}

// run is the main autosave loop. One session's failure aborts neither the
// cycle nor future cycles.
func (a *Autosaver) run() {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			saved := a.store.SaveAll(context.Background())
			observability.RecordAutosave(time.Since(start))
			log.Debug().Int("sessions", saved).Msg("Autosave cycle complete")
		case <-a.stopCh:
			return
		}
	}
}
