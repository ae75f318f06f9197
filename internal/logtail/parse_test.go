package logtail

import (
	"testing"
	"time"
)

func TestParseLine(t *testing.T) {
	received := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		line      string
		wantLevel string
		wantMsg   string
		wantRecv  bool // Timestamp should be the receive time
	}{
		{
			name:      "iso timestamp with bracket level",
			line:      "2024-01-15T10:30:00Z [ERROR] disk failure",
			wantLevel: "error",
			wantMsg:   "[ERROR] disk failure",
		},
		{
			name:      "iso timestamp with fraction and offset",
			line:      "2024-01-15T10:30:00.123+02:00 request handled",
			wantLevel: "info",
			wantMsg:   "request handled",
		},
		{
			name:      "space separated timestamp",
			line:      "2024-01-15 10:30:00 starting up",
			wantLevel: "info",
			wantMsg:   "starting up",
		},
		{
			name:      "bracket level without timestamp",
			line:      "[WARN] connection slow",
			wantLevel: "warn",
			wantMsg:   "[WARN] connection slow",
			wantRecv:  true,
		},
		{
			name:      "warning bracket normalizes to warn",
			line:      "[WARNING] low memory",
			wantLevel: "warn",
			wantMsg:   "[WARNING] low memory",
			wantRecv:  true,
		},
		{
			name:      "fatal bracket normalizes to error",
			line:      "[FATAL] cannot bind port",
			wantLevel: "error",
			wantMsg:   "[FATAL] cannot bind port",
			wantRecv:  true,
		},
		{
			name:      "trace bracket normalizes to debug",
			line:      "[TRACE] entering handler",
			wantLevel: "debug",
			wantMsg:   "[TRACE] entering handler",
			wantRecv:  true,
		},
		{
			name:      "keyword inference error",
			line:      "request failed with error code 7",
			wantLevel: "error",
			wantMsg:   "request failed with error code 7",
			wantRecv:  true,
		},
		{
			name:      "keyword inference warn",
			line:      "warn: retrying in 5s",
			wantLevel: "warn",
			wantMsg:   "warn: retrying in 5s",
			wantRecv:  true,
		},
		{
			name:      "keyword inference debug",
			line:      "debug dump of state follows",
			wantLevel: "debug",
			wantMsg:   "debug dump of state follows",
			wantRecv:  true,
		},
		{
			name:      "keyword must be a whole word",
			line:      "a night of terror at the opera",
			wantLevel: "info",
			wantMsg:   "a night of terror at the opera",
			wantRecv:  true,
		},
		{
			name:      "plain line defaults to info",
			line:      "listening on :8080",
			wantLevel: "info",
			wantMsg:   "listening on :8080",
			wantRecv:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := ParseLine(tt.line, received)
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %q, want %q", entry.Level, tt.wantLevel)
			}
			if entry.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", entry.Message, tt.wantMsg)
			}
			if entry.Raw != tt.line {
				t.Errorf("raw = %q, want original line", entry.Raw)
			}
			if tt.wantRecv && !entry.Timestamp.Equal(received) {
				t.Errorf("timestamp = %v, want receive time", entry.Timestamp)
			}
			if !tt.wantRecv && entry.Timestamp.Equal(received) {
				t.Error("timestamp not parsed from line")
			}
		})
	}
}

func TestParseLineTimestampValue(t *testing.T) {
	entry := ParseLine("2024-01-15T10:30:00Z server started", time.Now())
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if !entry.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", entry.Timestamp, want)
	}
}

func TestParseLines(t *testing.T) {
	text := "first line\n\n   \nsecond line\n"
	entries := ParseLines(text, time.Now())
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2 (blank lines skipped)", len(entries))
	}
	if entries[0].Raw != "first line" || entries[1].Raw != "second line" {
		t.Errorf("entries = %v", entries)
	}
}

func TestParseLinesEmpty(t *testing.T) {
	if entries := ParseLines("", time.Now()); len(entries) != 0 {
		t.Errorf("len = %d, want 0", len(entries))
	}
}
