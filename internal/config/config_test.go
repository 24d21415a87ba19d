package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %q, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log.format = %q, want json", cfg.Log.Format)
	}
	if cfg.Audit.Destination != "stdout" {
		t.Errorf("audit.destination = %q, want stdout", cfg.Audit.Destination)
	}
	if cfg.Policy.DefaultPath != "policy.yaml" {
		t.Errorf("policy.default_path = %q, want policy.yaml", cfg.Policy.DefaultPath)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aipgw.yaml")
	content := "log:\n  level: debug\naudit:\n  destination: /tmp/aipgw-audit.log\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Audit.Destination != "/tmp/aipgw-audit.log" {
		t.Errorf("audit.destination = %q, want /tmp/aipgw-audit.log", cfg.Audit.Destination)
	}
	// Format wasn't set in the file, default must survive the merge.
	if cfg.Log.Format != "json" {
		t.Errorf("log.format = %q, want json", cfg.Log.Format)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}
