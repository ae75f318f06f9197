package session

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shellmux/shellmux/internal/cleaner"
	muxerrors "github.com/shellmux/shellmux/internal/errors"
	"github.com/shellmux/shellmux/internal/util"
)

// logCommandLen bounds the command text attached to log records.
const logCommandLen = 160

// ExecResult is the outcome of one command run through the marker protocol.
// A timed-out command is still a result, not an error: TimedOut is set,
// ExitCode is nil, and Output is empty because an incomplete marker region
// is never parsed. The raw capture stays readable via Session.Output.
type ExecResult struct {
	SessionID string        `json:"session_id"`
	Command   string        `json:"command"`
	Output    string        `json:"output"`
	ExitCode  *int          `json:"exit_code,omitempty"`
	Success   bool          `json:"success"`
	TimedOut  bool          `json:"timed_out,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// newMarkers builds the three sentinel tokens for one command, made unique
// by the current millisecond timestamp. Two commands started within the
// same millisecond on the same session cannot happen because the session is
// busy for the duration of the first; collisions with output that happens
// to contain a marker string remain possible but require the output to
// reproduce the exact timestamp.
func newMarkers() cleaner.Markers {
	now := time.Now().UnixMilli()
	return cleaner.Markers{
		Start: fmt.Sprintf("___CMD_START_%d___", now),
		End:   fmt.Sprintf("___CMD_END_%d___", now),
		Exit:  fmt.Sprintf("___EXIT_CODE_%d___", now),
	}
}

// endWatcher signals once when the end marker shows up in the capture
// buffer. It runs on the PTY data path, so the containment check is the
// only work it does.
type endWatcher struct {
	marker string
	ch     chan struct{}
	once   sync.Once
}

func newEndWatcher(marker string) *endWatcher {
	return &endWatcher{marker: marker, ch: make(chan struct{})}
}

func (w *endWatcher) check(buf *Buffer) {
	if strings.Contains(buf.String(), w.marker) {
		w.once.Do(func() { close(w.ch) })
	}
}

// ExecuteCommand runs one command inside the session's shell and waits for
// it to complete or time out. A timeout of zero uses the session's default.
//
// The command is bracketed by marker echoes so completion and exit status
// can be recovered from the raw terminal stream:
//
//	echo '<start>' ; command ; echo "<exit>$?" ; echo '<end>'
//
// each written as its own line with a short pause between writes, so a slow
// shell does not interleave them. Completion is detected by watching the
// capture buffer for the end marker; after it appears a short settle wait
// lets trailing output arrive before parsing.
func (s *Session) ExecuteCommand(command string, timeout time.Duration) (*ExecResult, error) {
	if strings.TrimSpace(command) == "" {
		return nil, muxerrors.ErrCommandEmpty
	}
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}

	if err := s.beginCommand(command); err != nil {
		return nil, err
	}
	defer s.endCommand()

	start := time.Now()
	markers := newMarkers()

	// Clearing drops any spontaneous output that arrived since the last
	// command; callers who need it must read Output first.
	s.buffer.Clear()

	watch := newEndWatcher(markers.End)
	s.mu.Lock()
	s.endWatch = watch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.endWatch = nil
		s.mu.Unlock()
	}()

	writes := []string{
		fmt.Sprintf("echo '%s'", markers.Start),
		command,
		fmt.Sprintf("echo \"%s$?\"", markers.Exit),
		fmt.Sprintf("echo '%s'", markers.End),
	}
	for i, line := range writes {
		if i > 0 {
			time.Sleep(s.cfg.WritePacing)
		}
		if err := s.proc.Write([]byte(line + "\n")); err != nil {
			return nil, muxerrors.NewSessionError("writing command", err).
				WithSessionID(s.ID).
				WithCommand(command).
				WithSeverity(muxerrors.SeverityError)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-watch.ch:
		// Terminal echo of the end-marker write can trip the watcher
		// before the marker's own output line lands; the settle wait
		// covers the gap, and parsing uses last occurrences.
		time.Sleep(s.cfg.SettleDelay)
	case <-timer.C:
		// The marker region is incomplete, so nothing is parsed; the
		// buffer keeps whatever arrived for anyone reading the session
		// output directly.
		s.logger.Warn("command timed out", "command", util.TruncateString(command, logCommandLen), "timeout", timeout.String())
		return &ExecResult{
			SessionID: s.ID,
			Command:   command,
			TimedOut:  true,
			Duration:  time.Since(start),
		}, nil
	}

	raw := s.buffer.String()
	output, exitCode, ok := parseMarkedOutput(raw, markers)
	if !ok {
		// Marker ordering was violated (trimmed buffer or marker
		// collision). Fall back to the whole cleaned buffer and assume
		// success.
		s.logger.Warn("marker parse failed, returning full buffer", "command", util.TruncateString(command, logCommandLen))
		code := 0
		return &ExecResult{
			SessionID: s.ID,
			Command:   command,
			Output:    cleaner.Clean(raw, command, markers),
			ExitCode:  &code,
			Success:   true,
			Duration:  time.Since(start),
		}, nil
	}

	result := &ExecResult{
		SessionID: s.ID,
		Command:   command,
		Output:    cleaner.Clean(output, command, markers),
		ExitCode:  &exitCode,
		Success:   exitCode == 0,
		Duration:  time.Since(start),
	}
	s.logger.Debug("command completed",
		"command", util.TruncateString(command, logCommandLen),
		"exit_code", exitCode,
		"duration", result.Duration.String())
	return result, nil
}

// parseMarkedOutput extracts the command's output region and exit code from
// the raw buffer. Both markers appear twice (the shell's echo of the typed
// line, then the echo command's output), so the last occurrence of each is
// authoritative. Returns ok=false when the markers are missing or out of
// order.
func parseMarkedOutput(raw string, m cleaner.Markers) (output string, exitCode int, ok bool) {
	startIdx := strings.LastIndex(raw, m.Start)
	endIdx := strings.LastIndex(raw, m.End)
	if startIdx < 0 || endIdx < 0 || endIdx <= startIdx {
		return "", 0, false
	}

	output = raw[startIdx+len(m.Start) : endIdx]
	return output, extractExitCode(raw, m.Exit), true
}

// extractExitCode finds the last exit-marker occurrence that is immediately
// followed by digits. The echoed write has "$?" after the marker, not
// digits, so only the interpolated output line matches. Missing or
// unparsable codes default to 0.
func extractExitCode(raw, exitMarker string) int {
	re := regexp.MustCompile(regexp.QuoteMeta(exitMarker) + `(\d+)`)
	matches := re.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return 0
	}
	code, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0
	}
	return code
}
