package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/internal/tracing"
)

// Store is the keeper-resident session table. One mutex serializes all
// operations; mutations persist their snapshot before returning, so a crash
// right after a call never loses that call's state.
type Store struct {
	mu       sync.Mutex
	dir      string
	sessions map[uuid.UUID]*Session
}

// NewStore creates a store persisting one pretty-printed JSON snapshot per
// session under dir. An empty dir defaults to ~/.parley/sessions.
func NewStore(dir string) (*Store, error) {
	observability.EnsureRegistered()

	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".parley", "sessions")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	s := &Store{
		dir:      dir,
		sessions: make(map[uuid.UUID]*Session),
	}

	log.Info().Str("dir", dir).Msg("Session store initialized")

	return s, nil
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string {
	return s.dir
}

// snapshotPath returns the snapshot file path for a session id.
func (s *Store) snapshotPath(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

// Load restores every readable snapshot from the directory. Malformed files
// are skipped with a warning so one bad snapshot never blocks startup.
func (s *Store) Load(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "parley.session", "store.load")
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)
	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to read sessions directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Str("file", entry.Name()).Err(err).Msg("Failed to read snapshot, skipping")
			continue
		}

		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			logger.Warn().Str("file", entry.Name()).Err(err).Msg("Failed to parse snapshot, skipping")
			continue
		}
		if sess.ID == uuid.Nil {
			logger.Warn().Str("file", entry.Name()).Msg("Snapshot has no session id, skipping")
			continue
		}

		s.sessions[sess.ID] = &sess
		loaded++
	}

	observability.SetActiveSessions(len(s.sessions))
	logger.Info().Int("sessions", loaded).Msg("Sessions loaded")

	return nil
}

// GetOrCreate mints a session, stores it, and persists its snapshot.
func (s *Store) GetOrCreate(ctx context.Context) (*Session, error) {
	ctx, span := tracing.StartSpan(ctx, "parley.session", "store.get_or_create")
	defer span.End()

	sess := NewSession()
	ctx = tracing.WithSessionID(ctx, sess.ID.String())
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess
	observability.SetActiveSessions(len(s.sessions))

	if err := s.persistLocked(sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	logger.Info().Msg("Session created")

	return sess.Clone(), nil
}

// Get returns a copy of the session, or (nil, nil) when the id is unknown.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	_, span := tracing.StartSpan(
		ctx,
		"parley.session",
		"store.get",
		attribute.String("session_id", id.String()),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return sess.Clone(), nil
}

// Update replaces the stored session wholesale and persists the snapshot.
// CreatedAt of an existing entry survives whatever the caller sent, and
// LastActive is stamped here. Unknown ids are inserted, never rejected.
func (s *Store) Update(ctx context.Context, in *Session) (*Session, error) {
	if in == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}

	ctx, span := tracing.StartSpan(
		ctx,
		"parley.session",
		"store.update",
		attribute.String("session_id", in.ID.String()),
	)
	defer span.End()
	ctx = tracing.WithSessionID(ctx, in.ID.String())
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	if err := in.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := in.Clone()
	if prev, ok := s.sessions[sess.ID]; ok {
		sess.CreatedAt = prev.CreatedAt
	} else if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	sess.LastActive = time.Now().UTC()

	s.sessions[sess.ID] = sess
	observability.SetActiveSessions(len(s.sessions))

	if err := s.persistLocked(sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	logger.Debug().Int("messages", len(sess.Messages)).Msg("Session updated")

	return sess.Clone(), nil
}

// List returns copies of every session. Order is not significant.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	_, span := tracing.StartSpan(ctx, "parley.session", "store.list")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	return out, nil
}

// SaveAll persists every in-memory session, continuing past per-file
// failures. It returns the number of snapshots written.
func (s *Store) SaveAll(ctx context.Context) int {
	ctx, span := tracing.StartSpan(ctx, "parley.session", "store.save_all")
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := 0
	for _, sess := range s.sessions {
		if err := s.persistLocked(sess); err != nil {
			logger.Warn().Str("session_id", sess.ID.String()).Err(err).Msg("Failed to save session")
			continue
		}
		saved++
	}
	return saved
}

// persistLocked writes one snapshot. Callers hold s.mu.
func (s *Store) persistLocked(sess *Session) error {
	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(s.snapshotPath(sess.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}
