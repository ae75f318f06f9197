// Package logtail follows log files through a shell session. File access
// goes over the session's command protocol (stat, cat, tail), so the tailer
// works on any file the session's shell can read, with no filesystem watch
// or direct file handle involved.
package logtail

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shellmux/shellmux/internal/backend"
	muxerrors "github.com/shellmux/shellmux/internal/errors"
	"github.com/shellmux/shellmux/internal/logging"
	"github.com/shellmux/shellmux/internal/session"
)

// Status is a tail's lifecycle state. The vocabulary matches background
// processes: a healthy tail is running, a failed read leaves it in error,
// an explicit stop leaves it stopped. Error and stopped are terminal.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// Config holds the tailer's tunables.
type Config struct {
	// DefaultLines is the size of the initial snapshot when the caller
	// passes none.
	DefaultLines int

	// CommandTimeout bounds each file-access command.
	CommandTimeout time.Duration
}

// Tail is one followed file.
type Tail struct {
	// ID is the generated tail identifier.
	ID string

	// SessionID names the session whose shell reads the file.
	SessionID string

	// FilePath is the followed file.
	FilePath string

	StartedAt time.Time

	mu       sync.Mutex
	status   Status
	lastSize int64
}

// Status returns the tail's current state.
func (t *Tail) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// LastSize returns the file size recorded by the most recent read.
func (t *Tail) LastSize() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSize
}

// markError records a failed read. Terminal states stay as they are.
func (t *Tail) markError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusRunning {
		t.status = StatusError
	}
}

// Tailer tracks followed files across sessions.
type Tailer struct {
	store   *session.Store
	backend backend.Backend
	cfg     Config
	logger  *logging.Logger

	mu    sync.Mutex
	tails map[string]*Tail
}

// NewTailer creates an empty tailer over the given store and backend.
func NewTailer(store *session.Store, b backend.Backend, cfg Config, logger *logging.Logger) *Tailer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Tailer{
		store:   store,
		backend: b,
		cfg:     cfg,
		logger:  logger.WithComponent("logtail"),
		tails:   make(map[string]*Tail),
	}
}

// StartTailing begins following a file through the named session and returns
// the tail handle plus an initial snapshot of the file's last lines. The
// snapshot is read with a direct one-shot command so it does not occupy the
// session; all subsequent reads go through the session.
func (tl *Tailer) StartTailing(sessionID, filePath string, lines int) (*Tail, []LogEntry, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, nil, muxerrors.NewValidationError("file path cannot be empty").
			WithField("file_path")
	}
	sess, err := tl.store.GetSession(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if lines <= 0 {
		lines = tl.cfg.DefaultLines
	}

	size, err := tl.fileSize(sess, filePath)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), tl.cfg.CommandTimeout)
	defer cancel()
	snapshot, err := tl.backend.Execute(ctx, fmt.Sprintf("tail -n %d '%s'", lines, filePath), backend.ExecOptions{})
	if err != nil {
		return nil, nil, muxerrors.NewTailError("reading snapshot", muxerrors.ErrFileRead).
			WithFilePath(filePath)
	}

	t := &Tail{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		FilePath:  filePath,
		StartedAt: time.Now(),
		status:    StatusRunning,
		lastSize:  size,
	}
	tl.mu.Lock()
	tl.tails[t.ID] = t
	tl.mu.Unlock()

	tl.logger.Info("tail started",
		"tail_id", t.ID,
		"session_id", sessionID,
		"file_path", filePath,
		"size", size)
	return t, ParseLines(snapshot, time.Now()), nil
}

// GetLogs reads the whole file and returns entries at or after since. A zero
// since returns everything.
func (tl *Tailer) GetLogs(tailID string, since time.Time) ([]LogEntry, error) {
	t, err := tl.get(tailID)
	if err != nil {
		return nil, err
	}
	sess, err := tl.store.GetSession(t.SessionID)
	if err != nil {
		return nil, err
	}

	content, err := tl.readCommand(sess, fmt.Sprintf("cat '%s'", t.FilePath), t.FilePath)
	if err != nil {
		t.markError()
		return nil, err
	}

	entries := ParseLines(content, time.Now())
	if since.IsZero() {
		return entries, nil
	}
	filtered := entries[:0]
	for _, e := range entries {
		if !e.Timestamp.Before(since) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// GetIncrementalLogs returns entries appended since the previous read. The
// file size is re-queried after the read and recorded as the new position,
// so bytes written between the read and the size query are skipped by the
// next call; a follower that cannot miss lines must use GetLogs. A file that
// shrank (rotation, truncation) is re-read from the start.
func (tl *Tailer) GetIncrementalLogs(tailID string) ([]LogEntry, error) {
	t, err := tl.get(tailID)
	if err != nil {
		return nil, err
	}
	sess, err := tl.store.GetSession(t.SessionID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	lastSize := t.lastSize
	t.mu.Unlock()

	size, err := tl.fileSize(sess, t.FilePath)
	if err != nil {
		t.markError()
		return nil, err
	}

	var readCmd string
	switch {
	case size == lastSize:
		return nil, nil
	case size < lastSize:
		tl.logger.Info("file shrank, restarting from head",
			"tail_id", tailID, "old_size", lastSize, "new_size", size)
		readCmd = fmt.Sprintf("cat '%s'", t.FilePath)
	default:
		// tail -c +N is 1-based: +N starts at byte N.
		readCmd = fmt.Sprintf("tail -c +%d '%s'", lastSize+1, t.FilePath)
	}

	content, err := tl.readCommand(sess, readCmd, t.FilePath)
	if err != nil {
		t.markError()
		return nil, err
	}

	newSize, err := tl.fileSize(sess, t.FilePath)
	if err != nil {
		newSize = size
	}
	t.mu.Lock()
	t.lastSize = newSize
	t.mu.Unlock()

	return ParseLines(content, time.Now()), nil
}

// StopTailing marks a running tail stopped. Stopping twice is a no-op, a
// tail already in error keeps that state, and an unknown id returns
// ErrTailNotFound.
func (tl *Tailer) StopTailing(tailID string) error {
	t, err := tl.get(tailID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.status == StatusRunning {
		t.status = StatusStopped
	}
	t.mu.Unlock()
	tl.logger.Info("tail stopped", "tail_id", tailID)
	return nil
}

// GetActiveTails returns every tail still running.
func (tl *Tailer) GetActiveTails() []*Tail {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]*Tail, 0, len(tl.tails))
	for _, t := range tl.tails {
		if t.Status() == StatusRunning {
			out = append(out, t)
		}
	}
	return out
}

// CleanupStopped forgets every tail in a terminal state and returns the ids
// removed.
func (tl *Tailer) CleanupStopped() []string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	var removed []string
	for id, t := range tl.tails {
		switch t.Status() {
		case StatusStopped, StatusError, StatusCompleted:
			delete(tl.tails, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (tl *Tailer) get(tailID string) (*Tail, error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	t, ok := tl.tails[tailID]
	if !ok {
		return nil, muxerrors.NewNotFoundError("tail", tailID).
			WithCause(muxerrors.ErrTailNotFound)
	}
	return t, nil
}

// fileSize queries a file's size through the session, preferring stat and
// falling back to wc for shells without GNU stat.
func (tl *Tailer) fileSize(sess *session.Session, filePath string) (int64, error) {
	out, err := tl.runRead(sess, fmt.Sprintf("stat -c%%s '%s'", filePath))
	if err == nil {
		if size, perr := parseSize(out); perr == nil {
			return size, nil
		}
	}

	out, err = tl.runRead(sess, fmt.Sprintf("wc -c < '%s'", filePath))
	if err != nil {
		return 0, err
	}
	size, perr := parseSize(out)
	if perr != nil {
		return 0, muxerrors.NewTailError("unparsable size output", muxerrors.ErrFileRead).
			WithFilePath(filePath)
	}
	return size, nil
}

// readCommand runs one read command through the session and returns its
// output, mapping failures onto the tail error taxonomy.
func (tl *Tailer) readCommand(sess *session.Session, command, filePath string) (string, error) {
	out, err := tl.runRead(sess, command)
	if err != nil {
		return "", muxerrors.NewTailError("reading file", muxerrors.ErrFileRead).
			WithFilePath(filePath)
	}
	return out, nil
}

// runRead executes one command and treats timeout and nonzero exit as
// failures; unlike interactive execution, a tailer read has no use for a
// partial timed-out result.
func (tl *Tailer) runRead(sess *session.Session, command string) (string, error) {
	result, err := sess.ExecuteCommand(command, tl.cfg.CommandTimeout)
	if err != nil {
		return "", err
	}
	if result.TimedOut {
		return "", muxerrors.NewTimeoutError(command, tl.cfg.CommandTimeout)
	}
	if !result.Success {
		return "", muxerrors.ErrFileRead
	}
	return result.Output, nil
}

func parseSize(output string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(output), 10, 64)
}
