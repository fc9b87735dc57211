package tracing

import (
	"context"
	"testing"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestWithTraceID(t *testing.T) {
	ctx := context.Background()
	traceID := "test-trace-id"

	ctx = WithTraceID(ctx, traceID)

	retrieved := GetTraceID(ctx)
	if retrieved != traceID {
		t.Errorf("Expected trace ID %s, got %s", traceID, retrieved)
	}
}

func TestWithSessionID(t *testing.T) {
	ctx := context.Background()
	sessionID := "0d4cde54-3a7c-4a49-8678-96590a213a3f"

	ctx = WithSessionID(ctx, sessionID)

	retrieved := GetSessionID(ctx)
	if retrieved != sessionID {
		t.Errorf("Expected session ID %s, got %s", sessionID, retrieved)
	}
}

func TestWithConnID(t *testing.T) {
	ctx := context.Background()
	connID := "conn-abc123"

	ctx = WithConnID(ctx, connID)

	retrieved := GetConnID(ctx)
	if retrieved != connID {
		t.Errorf("Expected conn ID %s, got %s", connID, retrieved)
	}
}

func TestGetTraceIDEmpty(t *testing.T) {
	ctx := context.Background()

	traceID := GetTraceID(ctx)
	if traceID != "" {
		t.Errorf("Expected empty trace ID, got %s", traceID)
	}
}

func TestGetSessionIDEmpty(t *testing.T) {
	ctx := context.Background()

	sessionID := GetSessionID(ctx)
	if sessionID != "" {
		t.Errorf("Expected empty session ID, got %s", sessionID)
	}
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithSessionID(ctx, "session-1")
	ctx = WithConnID(ctx, "conn-1")

	tc := FromContext(ctx)

	if tc.TraceID != "trace-1" {
		t.Errorf("Expected trace ID trace-1, got %s", tc.TraceID)
	}
	if tc.SessionID != "session-1" {
		t.Errorf("Expected session ID session-1, got %s", tc.SessionID)
	}
	if tc.ConnID != "conn-1" {
		t.Errorf("Expected conn ID conn-1, got %s", tc.ConnID)
	}
}

func TestNewContext(t *testing.T) {
	tc := &TraceContext{
		TraceID:   "trace-2",
		SessionID: "session-2",
	}

	ctx := NewContext(context.Background(), tc)

	if GetTraceID(ctx) != "trace-2" {
		t.Errorf("Expected trace ID trace-2, got %s", GetTraceID(ctx))
	}
	if GetSessionID(ctx) != "session-2" {
		t.Errorf("Expected session ID session-2, got %s", GetSessionID(ctx))
	}
	if GetConnID(ctx) != "" {
		t.Errorf("Expected empty conn ID, got %s", GetConnID(ctx))
	}
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())

	if GetTraceID(ctx) == "" {
		t.Error("NewRequestContext did not set a trace ID")
	}
}
