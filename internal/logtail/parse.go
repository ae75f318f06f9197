package logtail

import (
	"regexp"
	"strings"
	"time"
)

// LogEntry is one parsed log line.
type LogEntry struct {
	// Timestamp is the time parsed from the line, or the receive time
	// when the line carries none.
	Timestamp time.Time `json:"timestamp"`

	// Level is one of "debug", "info", "warn", "error".
	Level string `json:"level"`

	// Message is the line with any recognized timestamp prefix removed.
	Message string `json:"message"`

	// Raw is the line as read.
	Raw string `json:"raw"`
}

var (
	isoTimestampRe = regexp.MustCompile(
		`^(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?)[\s:-]*(.*)$`)

	bracketLevelRe = regexp.MustCompile(`(?i)\[(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL)\]`)
)

// timestampLayouts are tried in order against a recognized ISO-8601 prefix.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseLine parses one log line. Recognition is best effort: an ISO-8601
// leading timestamp is consumed into Timestamp, a bracketed level token wins
// over keyword inference, and a line with neither gets the receive time and
// a level inferred from its words.
func ParseLine(line string, received time.Time) LogEntry {
	entry := LogEntry{
		Timestamp: received,
		Message:   line,
		Raw:       line,
	}

	if m := isoTimestampRe.FindStringSubmatch(line); m != nil {
		if ts, ok := parseTimestamp(m[1]); ok {
			entry.Timestamp = ts
			entry.Message = m[2]
		}
	}

	entry.Level = detectLevel(entry.Message)
	return entry
}

// ParseLines parses a block of text, skipping blank lines.
func ParseLines(text string, received time.Time) []LogEntry {
	var entries []LogEntry
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, ParseLine(line, received))
	}
	return entries
}

func parseTimestamp(s string) (time.Time, bool) {
	normalized := strings.Replace(s, ",", ".", 1)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, normalized); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// detectLevel infers a severity. A bracketed token like "[ERROR]" is
// authoritative; otherwise keywords anywhere in the message decide, with
// error outranking warn outranking debug.
func detectLevel(message string) string {
	if m := bracketLevelRe.FindStringSubmatch(message); m != nil {
		return normalizeLevel(m[1])
	}

	lower := strings.ToLower(message)
	switch {
	case containsWord(lower, "error"), containsWord(lower, "err"),
		containsWord(lower, "fatal"), containsWord(lower, "panic"):
		return "error"
	case containsWord(lower, "warn"), containsWord(lower, "warning"):
		return "warn"
	case containsWord(lower, "debug"), containsWord(lower, "trace"):
		return "debug"
	default:
		return "info"
	}
}

func normalizeLevel(token string) string {
	switch strings.ToLower(token) {
	case "trace", "debug":
		return "debug"
	case "warn", "warning":
		return "warn"
	case "error", "fatal":
		return "error"
	default:
		return "info"
	}
}

var wordRe = regexp.MustCompile(`[a-z]+`)

// containsWord reports whether word appears as a whole alphabetic token in
// the lowercased text, so "error" does not match inside "terror".
func containsWord(lower, word string) bool {
	for _, tok := range wordRe.FindAllString(lower, -1) {
		if tok == word {
			return true
		}
	}
	return false
}
