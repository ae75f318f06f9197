// Package bgproc runs long commands in the background of a shell session and
// lets callers poll their output while they run.
//
// A background process is an ExecuteCommand in flight on its own goroutine,
// plus a private capture buffer fed by a listener on the session's output
// stream. Polling reads the private buffer, so it never touches the
// session's own capture buffer or command state.
package bgproc

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shellmux/shellmux/internal/cleaner"
	muxerrors "github.com/shellmux/shellmux/internal/errors"
	"github.com/shellmux/shellmux/internal/logging"
	"github.com/shellmux/shellmux/internal/session"
	"github.com/shellmux/shellmux/internal/util"
)

// Status is a background process's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// Config holds the poller's tunables.
type Config struct {
	// BufferSize bounds each process's private capture buffer, in bytes.
	BufferSize int

	// DefaultTimeout bounds a background command when the caller passes
	// none.
	DefaultTimeout time.Duration

	// PollInterval is the suggested delay between polls for callers that
	// follow a process, such as the CLI's follow mode.
	PollInterval time.Duration
}

// StartOptions tunes one background process. Zero fields fall back to the
// poller's config.
type StartOptions struct {
	// Timeout bounds the command.
	Timeout time.Duration

	// Interval is the suggested delay between polls of this process.
	Interval time.Duration

	// BufferSize bounds this process's capture buffer, in bytes.
	BufferSize int
}

// Process is one background command and its captured output.
type Process struct {
	// ID is the generated process identifier.
	ID string

	// SessionID names the session the command runs in.
	SessionID string

	// Command is the command line being run.
	Command string

	StartedAt time.Time

	// interval is the per-process poll cadence, fixed at start.
	interval time.Duration

	mu          sync.Mutex
	status      Status
	buffer      *session.Buffer
	readPos     int
	lastTrimmed int64
	exitCode    *int
	completedAt time.Time
}

// Interval returns the suggested delay between polls of this process.
func (p *Process) Interval() time.Duration {
	return p.interval
}

// Status returns the process's current state.
func (p *Process) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// ExitCode returns the command's exit code, or nil while it runs or when it
// never completed.
func (p *Process) ExitCode() *int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// CompletedAt returns when the process left the running state, zero while
// it runs.
func (p *Process) CompletedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completedAt
}

// append feeds session output into the private buffer. When the bounded
// buffer trims its head, the read cursor shifts down by the trimmed amount
// so it keeps pointing at the same bytes, clamped at zero once those bytes
// are gone.
func (p *Process) append(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer.Append(data)

	trimmed := p.buffer.TrimmedTotal()
	if delta := trimmed - p.lastTrimmed; delta > 0 {
		p.readPos -= int(delta)
		if p.readPos < 0 {
			p.readPos = 0
		}
		p.lastTrimmed = trimmed
	}
}

// finish records the command outcome. A process already stopped by the
// caller keeps its stopped state.
func (p *Process) finish(result *session.ExecResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusRunning {
		return
	}
	p.completedAt = time.Now()
	switch {
	case err != nil:
		p.status = StatusError
	case result.TimedOut:
		p.status = StatusError
	default:
		p.status = StatusCompleted
		p.exitCode = result.ExitCode
	}
}

// PollResult is one observation of a background process.
type PollResult struct {
	ProcessID     string `json:"process_id"`
	SessionID     string `json:"session_id"`
	Command       string `json:"command"`
	Status        Status `json:"status"`
	Output        string `json:"output"`
	HasNewContent bool   `json:"has_new_content"`
	ExitCode      *int   `json:"exit_code,omitempty"`
}

// Poller starts background commands and tracks their processes.
type Poller struct {
	store  *session.Store
	cfg    Config
	logger *logging.Logger

	mu    sync.Mutex
	procs map[string]*Process
}

// NewPoller creates an empty poller over the given session store.
func NewPoller(store *session.Store, cfg Config, logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Poller{
		store:  store,
		cfg:    cfg,
		logger: logger.WithComponent("bgproc"),
		procs:  make(map[string]*Process),
	}
}

// PollInterval returns the configured suggested delay between polls.
func (pl *Poller) PollInterval() time.Duration {
	return pl.cfg.PollInterval
}

// StartProcess launches a command in the background of the named session.
// The session is busy for the duration, like any other command; the process
// handle is returned immediately.
func (pl *Poller) StartProcess(sessionID, command string, opts StartOptions) (*Process, error) {
	sess, err := pl.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = pl.cfg.DefaultTimeout
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = pl.cfg.PollInterval
	}
	bufSize := opts.BufferSize
	if bufSize <= 0 {
		bufSize = pl.cfg.BufferSize
	}

	p := &Process{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Command:   command,
		StartedAt: time.Now(),
		interval:  interval,
		status:    StatusRunning,
		buffer:    session.NewBuffer(bufSize),
	}

	listenerID := sess.AddListener(p.append)

	pl.mu.Lock()
	pl.procs[p.ID] = p
	pl.mu.Unlock()

	go func() {
		result, execErr := sess.ExecuteCommand(command, timeout)
		sess.RemoveListener(listenerID)
		if execErr != nil {
			pl.logger.Warn("background command failed",
				"process_id", p.ID,
				"session_id", sessionID,
				"error", execErr.Error())
		}
		p.finish(result, execErr)
	}()

	pl.logger.Info("background process started",
		"process_id", p.ID,
		"session_id", sessionID,
		"command", util.TruncateString(command, 160))
	return p, nil
}

// Poll reads a process's captured output. An incremental poll returns only
// bytes accumulated since the previous poll; a full poll returns the whole
// buffer. Both report HasNewContent against the cursor position on entry and
// advance the cursor to the buffer's end, so a full poll also marks the
// backlog as seen. Output is cleaned of terminal control sequences and
// marker lines. The shell's echo of the command is kept: an observer cannot
// strip it reliably once the stream is chunked by incremental polls.
func (pl *Poller) Poll(processID string, incremental bool) (*PollResult, error) {
	p, err := pl.get(processID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	var raw string
	var hasNew bool
	if incremental {
		raw = p.buffer.ReadFrom(p.readPos)
		hasNew = raw != ""
	} else {
		raw = p.buffer.String()
		hasNew = p.buffer.Len() > p.readPos
	}
	p.readPos = p.buffer.Len()
	result := &PollResult{
		ProcessID: p.ID,
		SessionID: p.SessionID,
		Command:   p.Command,
		Status:    p.status,
		ExitCode:  p.exitCode,
	}
	p.mu.Unlock()

	output := cleaner.StripControlSequences(raw)
	result.Output = cleaner.StripAnyMarkerLines(output)
	result.HasNewContent = hasNew
	return result, nil
}

// StopProcess interrupts a running background command and marks the process
// stopped. Stopping an already finished or unknown process is a no-op.
func (pl *Poller) StopProcess(processID string) error {
	p, err := pl.get(processID)
	if err != nil {
		return nil
	}

	p.mu.Lock()
	if p.status != StatusRunning {
		p.mu.Unlock()
		return nil
	}
	p.status = StatusStopped
	p.completedAt = time.Now()
	p.mu.Unlock()

	if sess, err := pl.store.GetSession(p.SessionID); err == nil {
		// Best effort; the session may be mid-teardown.
		if err := sess.Interrupt(); err != nil {
			pl.logger.Warn("interrupt failed", "process_id", processID, "error", err.Error())
		}
	}
	pl.logger.Info("background process stopped", "process_id", processID)
	return nil
}

// GetProcess returns the process with the given id.
func (pl *Poller) GetProcess(processID string) (*Process, error) {
	return pl.get(processID)
}

// GetActiveProcesses returns every process still running.
func (pl *Poller) GetActiveProcesses() []*Process {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	out := make([]*Process, 0, len(pl.procs))
	for _, p := range pl.procs {
		if p.Status() == StatusRunning {
			out = append(out, p)
		}
	}
	return out
}

// GetAllProcesses returns every tracked process, finished ones included.
func (pl *Poller) GetAllProcesses() []*Process {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	out := make([]*Process, 0, len(pl.procs))
	for _, p := range pl.procs {
		out = append(out, p)
	}
	return out
}

// CleanupCompleted forgets every process that is no longer running and
// returns the ids removed. Their buffered output is discarded.
func (pl *Poller) CleanupCompleted() []string {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	var removed []string
	for id, p := range pl.procs {
		if p.Status() != StatusRunning {
			delete(pl.procs, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (pl *Poller) get(processID string) (*Process, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	p, ok := pl.procs[processID]
	if !ok {
		return nil, muxerrors.NewNotFoundError("process", processID).
			WithCause(muxerrors.ErrProcessNotFound)
	}
	return p, nil
}
