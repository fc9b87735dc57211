package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a chat entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatEntry is a single conversation turn.
type ChatEntry struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Validate checks that the entry carries a known role.
func (e ChatEntry) Validate() error {
	switch e.Role {
	case RoleUser, RoleAssistant:
		return nil
	}
	return fmt.Errorf("unknown role %q", e.Role)
}

// Session is one conversation and its full message history. CreatedAt is
// immutable after creation, LastActive moves on every mutation, and
// Messages is always carried whole, never as a delta.
type Session struct {
	ID         uuid.UUID   `json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	LastActive time.Time   `json:"last_active"`
	Messages   []ChatEntry `json:"messages"`
}

// NewSession returns a fresh session with a new id and both timestamps set.
func NewSession() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         uuid.New(),
		CreatedAt:  now,
		LastActive: now,
		Messages:   []ChatEntry{},
	}
}

// Clone returns a deep copy. The store and the client hand out clones so
// callers can mutate what they hold without racing the table.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]ChatEntry, len(s.Messages))
	copy(out.Messages, s.Messages)
	return &out
}

// Append adds one entry to the message history.
func (s *Session) Append(role Role, text string) {
	s.Messages = append(s.Messages, ChatEntry{Role: role, Text: text})
}

// Validate checks the session is well formed for storage.
func (s *Session) Validate() error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("session id cannot be empty")
	}
	for i, entry := range s.Messages {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// Service is the session boundary every collaborator talks to. The keeper
// process implements it directly on the Store; every other invocation goes
// through the Client proxy. Callers never branch on which one they hold.
//
// Get reports absence as (nil, nil). Update replaces the stored session
// wholesale and returns the stored copy.
type Service interface {
	GetOrCreate(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Update(ctx context.Context, sess *Session) (*Session, error)
	List(ctx context.Context) ([]*Session, error)
}
