package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWritesJSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "json", &buf)
	logger.Info().Str("tool_name", "search").Msg("allowed")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output isn't JSON: %v (%q)", err, buf.String())
	}
	if decoded["tool_name"] != "search" {
		t.Errorf("tool_name = %v, want search", decoded["tool_name"])
	}
}

func TestNewHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("error", "json", &buf)
	logger.Info().Msg("should be filtered")
	logger.Error().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Errorf("info line leaked through at error level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("error line missing: %q", out)
	}
}

func TestNewConsoleFormatDoesNotPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "console", &buf)
	logger.Debug().Msg("hello")
	if buf.Len() == 0 {
		t.Error("expected console writer to produce output")
	}
}
