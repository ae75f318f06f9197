// Package cleaner strips terminal noise out of raw PTY capture text.
//
// The capture buffer attached to a shell session is an unstructured byte
// stream: it carries ANSI control sequences, carriage-return games, the
// shell's echo of every command we write, prompt repaints, and the sentinel
// marker lines the command protocol injects. The cleaner turns that stream
// into the output a caller actually asked for.
//
// The transforms are pure and individually idempotent, but they are only
// correct when applied in the documented order (Clean applies them):
//
//  1. StripControlSequences
//  2. StripMarkerLines
//  3. StripCommandEcho
//  4. StripPromptLines
//
// Stage 1 can merge or split lines that the later stages key on, so every
// stage must run over the whole text, never per-fragment.
//
// Prompt and echo stripping is a heuristic, not a parser: a legitimate
// output line that happens to look like a prompt will be stripped, and an
// unrecognized prompt style will pass through. Callers that need exact
// output should not print prompt-shaped lines.
package cleaner

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Markers holds the three sentinel tokens the command protocol injects into
// a session's output stream to delimit one command.
type Markers struct {
	// Start delimits the beginning of the command's output region.
	Start string
	// End delimits the end of the command's output region.
	End string
	// Exit prefixes the shell's reported exit code.
	Exit string
}

// Empty reports whether no marker tokens are set.
func (m Markers) Empty() bool {
	return m.Start == "" && m.End == "" && m.Exit == ""
}

var (
	// collapseBlankRe matches runs of newlines that form three or more
	// consecutive blank lines.
	collapseBlankRe = regexp.MustCompile(`\n{4,}`)

	// anyMarkerRe matches any sentinel token regardless of timestamp, for
	// callers observing a stream without knowing the exact markers.
	anyMarkerRe = regexp.MustCompile(`___(?:CMD_START|CMD_END|EXIT_CODE)_\d+___`)

	// promptRes are the heuristic shell-prompt shapes stripped by stage 4.
	promptRes = []*regexp.Regexp{
		// user@host:path$ (optionally with trailing echoed text consumed by
		// stage 2/3 already; here the line must end at the prompt)
		regexp.MustCompile(`^[\w.\-]+@[\w.\-]+:[^\n]*[$#]\s*$`),
		// bare prompt characters
		regexp.MustCompile(`^\s*[$#>❯]\s*$`),
		// parenthesized environment prompts, e.g. "(venv) $"
		regexp.MustCompile(`^\([\w.\-]+\)\s*[\w.\-]*\s*[$#>❯]?\s*$`),
	}
)

// StripControlSequences removes terminal control sequences and normalizes
// line structure. It strips ANSI escape sequences (styling, cursor movement,
// OSC sequences, private mode toggles), drops bell and backspace bytes,
// normalizes carriage returns to newlines, right-trims every line, and
// collapses runs of three or more blank lines into a single blank line.
func StripControlSequences(text string) string {
	if text == "" {
		return ""
	}

	text = ansi.Strip(text)

	// Bell and backspace bytes carry no content.
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\a', '\b':
			return -1
		}
		return r
	}, text)

	// CRLF first so lone-CR normalization doesn't double newlines.
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")

	return collapseBlankRe.ReplaceAllString(text, "\n\n")
}

// StripMarkerLines removes every line that contains one of the sentinel
// marker tokens. This covers both the marker output itself (the line the
// shell prints when the echo runs) and the shell's echo of the
// marker-writing commands.
func StripMarkerLines(text string, m Markers) string {
	if text == "" || m.Empty() {
		return text
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if containsMarker(line, m) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// StripAnyMarkerLines removes every line containing a sentinel token of any
// timestamp. Observers of a shared session stream use this when the exact
// markers of the command in flight are not known to them.
func StripAnyMarkerLines(text string) string {
	if text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if anyMarkerRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func containsMarker(line string, m Markers) bool {
	if m.Start != "" && strings.Contains(line, m.Start) {
		return true
	}
	if m.End != "" && strings.Contains(line, m.End) {
		return true
	}
	if m.Exit != "" && strings.Contains(line, m.Exit) {
		return true
	}
	return false
}

// StripCommandEcho removes the shell's echo of the executed command: the
// first line that contains the command's leading token. At most one line is
// removed, on first match only, so command output that legitimately repeats
// the command text survives.
func StripCommandEcho(text, command string) string {
	command = strings.TrimSpace(command)
	if text == "" || command == "" {
		return text
	}

	token := command
	if idx := strings.IndexAny(command, " \t"); idx > 0 {
		token = command[:idx]
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.Contains(line, token) {
			return strings.Join(append(lines[:i:i], lines[i+1:]...), "\n")
		}
	}
	return text
}

// StripPromptLines removes lines matching heuristic shell-prompt shapes:
// "user@host:path$" style prompts, bare prompt characters, and
// parenthesized-environment prompts.
func StripPromptLines(text string) string {
	if text == "" {
		return text
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isPromptLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isPromptLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, re := range promptRes {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// Clean applies the full pipeline in its required order and trims leading
// and trailing blank lines from the result.
func Clean(text, command string, m Markers) string {
	text = StripControlSequences(text)
	text = StripMarkerLines(text, m)
	text = StripCommandEcho(text, command)
	text = StripPromptLines(text)
	return trimBlankEdges(text)
}

// trimBlankEdges drops leading and trailing blank lines while preserving
// interior structure.
func trimBlankEdges(text string) string {
	lines := strings.Split(text, "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	return strings.Join(lines[start:end], "\n")
}
