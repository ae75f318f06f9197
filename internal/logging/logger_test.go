package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLogLines(t *testing.T, path string) []map[string]any {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not valid JSON: %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("session created", "session_id", "shell-1", "shell", "/bin/bash")
	logger.Debug("marker written")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries := readLogLines(t, filepath.Join(dir, LogFileName))
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}

	first := entries[0]
	if first["msg"] != "session created" {
		t.Errorf("msg = %v, want %q", first["msg"], "session created")
	}
	if first["session_id"] != "shell-1" {
		t.Errorf("session_id = %v, want %q", first["session_id"], "shell-1")
	}
	if first["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", first["level"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelWarn, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Error("also kept")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries := readLogLines(t, filepath.Join(dir, LogFileName))
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries at WARN level, got %d", len(entries))
	}
	if entries[0]["msg"] != "kept" {
		t.Errorf("first entry msg = %v, want %q", entries[0]["msg"], "kept")
	}
}

func TestLogger_ChildAttributes(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithComponent("protocol").WithSession("shell-7")
	child.Info("command accepted", "command", "echo hello")

	// Parent logger must not gain the child's attributes.
	logger.Info("store event")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries := readLogLines(t, filepath.Join(dir, LogFileName))
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}

	child0 := entries[0]
	if child0["component"] != "protocol" {
		t.Errorf("component = %v, want %q", child0["component"], "protocol")
	}
	if child0["session_id"] != "shell-7" {
		t.Errorf("session_id = %v, want %q", child0["session_id"], "shell-7")
	}
	if child0["command"] != "echo hello" {
		t.Errorf("command = %v, want %q", child0["command"], "echo hello")
	}

	parent := entries[1]
	if _, ok := parent["component"]; ok {
		t.Error("parent logger leaked child component attribute")
	}
}

func TestLogger_WithProcessAndTail(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.WithProcess("proc-1").Info("process started")
	logger.WithTail("tail-1").Info("tail started")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries := readLogLines(t, filepath.Join(dir, LogFileName))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["process_id"] != "proc-1" {
		t.Errorf("process_id = %v, want proc-1", entries[0]["process_id"])
	}
	if entries[1]["tail_id"] != "tail-1" {
		t.Errorf("tail_id = %v, want tail-1", entries[1]["tail_id"])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	// Must not panic, and Close must be a no-op.
	logger.Info("discarded")
	logger.WithSession("x").Debug("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on NopLogger returned error: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
