package model

import "testing"

func TestNewRejectsEmptyToolName(t *testing.T) {
	if _, err := New("", map[string]any{}); err == nil {
		t.Error("expected an error for an empty tool name")
	}
}

func TestNewGeneratesRequestIDWhenAbsent(t *testing.T) {
	inv, err := New("search", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inv.RequestID() == "" {
		t.Error("expected a generated request id")
	}
	if inv.Arguments() == nil {
		t.Error("expected a non-nil arguments map for a nil input")
	}
}

func TestNewHonorsExplicitRequestID(t *testing.T) {
	inv, err := New("search", nil, WithRequestID("fixed-id"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inv.RequestID() != "fixed-id" {
		t.Errorf("request id = %q, want fixed-id", inv.RequestID())
	}
}

func TestNewAppliesOptions(t *testing.T) {
	inv, err := New("search", map[string]any{"q": "x"},
		WithActor("alice@example.com"),
		WithRoles("reader", "writer"),
		WithClient(map[string]any{"session_id": "s1"}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inv.Actor() != "alice@example.com" {
		t.Errorf("actor = %q", inv.Actor())
	}
	if len(inv.Roles()) != 2 {
		t.Errorf("roles = %v, want 2 entries", inv.Roles())
	}
	if inv.SessionID() != "s1" {
		t.Errorf("session id = %q, want s1", inv.SessionID())
	}
}

func TestSessionIDAbsentWithoutClient(t *testing.T) {
	inv, err := New("search", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inv.SessionID() != "" {
		t.Errorf("session id = %q, want empty", inv.SessionID())
	}
}

func TestArgumentsSizeBytesReflectsJSONEncoding(t *testing.T) {
	inv, err := New("search", map[string]any{"q": "hello"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inv.ArgumentsSizeBytes() <= 0 {
		t.Error("expected a positive size")
	}
}

func TestISOTimestampDefaultsWhenUnset(t *testing.T) {
	inv, err := New("search", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inv.ISOTimestamp() == "" {
		t.Error("expected a non-empty default timestamp")
	}
}

func TestISOTimestampHonorsExplicitValue(t *testing.T) {
	inv, err := New("search", nil, WithTimestamp("2024-01-01T00:00:00Z"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inv.ISOTimestamp() != "2024-01-01T00:00:00Z" {
		t.Errorf("timestamp = %q", inv.ISOTimestamp())
	}
}
