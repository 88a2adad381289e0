package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"leadline.org/internal/auth"
	"leadline.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithIdentity(ctx, auth.Identity{ID: "user-42", Role: auth.RoleAdmin})

	if err := LogEvent(ctx, "audit.test", map[string]any{"foo": "bar"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "audit.test" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-42" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["foo"] != "bar" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestRecorderFireAndForget(t *testing.T) {
	store := NewMemoryActivityStore()
	rec := NewRecorder(store)

	rec.Record(context.Background(), "user-1", "created lead", "lead", "lead-1")

	got, err := store.Recent(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(got))
	}
	if got[0].Action != "created lead" || got[0].EntityID != "lead-1" {
		t.Fatalf("unexpected activity: %+v", got[0])
	}
}

func TestRecentFiltersByActor(t *testing.T) {
	store := NewMemoryActivityStore()
	rec := NewRecorder(store)
	ctx := context.Background()

	rec.Record(ctx, "agent-a", "created lead", "lead", "l1")
	rec.Record(ctx, "agent-b", "created lead", "lead", "l2")
	rec.Record(ctx, "agent-a", "updated lead", "lead", "l1")

	mine, err := store.Recent(ctx, "agent-a", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 activities for agent-a, got %d", len(mine))
	}
	if mine[0].Action != "updated lead" {
		t.Fatalf("expected newest first, got %+v", mine[0])
	}

	all, err := store.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 activities unfiltered, got %d", len(all))
	}
}
