// Package session implements persistent PTY-backed shell sessions and the
// sentinel-marker command protocol that runs discrete commands inside them.
//
// A session owns one long-lived shell process. Everything the shell emits is
// appended to a bounded capture buffer and fanned out to registered
// listeners; the background process poller attaches a listener to observe a
// session without disturbing it. Commands run through ExecuteCommand, which
// brackets the command with unique marker strings so that completion and
// exit status can be recovered from the raw terminal stream.
package session

import (
	"sync"
	"time"

	"github.com/shellmux/shellmux/internal/backend"
	muxerrors "github.com/shellmux/shellmux/internal/errors"
	"github.com/shellmux/shellmux/internal/logging"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusReady        Status = "ready"
	StatusBusy         Status = "busy"
	StatusError        Status = "error"
	StatusClosed       Status = "closed"
)

// Listener receives raw PTY output. Listeners run on the PTY read path and
// must return quickly.
type Listener func(data []byte)

// Config holds the tunables the Store applies to every session it creates.
type Config struct {
	// MaxSessions bounds the number of concurrently open sessions.
	MaxSessions int

	// BufferSize bounds each session's capture buffer, in bytes.
	BufferSize int

	// SettleDelay is the wait applied after session creation and after
	// end-marker detection, letting the shell finish writing.
	SettleDelay time.Duration

	// WritePacing is the pause between the protocol's paced writes.
	WritePacing time.Duration

	// DefaultTimeout bounds a command when the caller passes none.
	DefaultTimeout time.Duration

	// Cols and Rows are the initial PTY dimensions.
	Cols uint16
	Rows uint16
}

// Session is one persistent shell with its capture buffer and command state.
type Session struct {
	// ID is the caller-chosen session identifier.
	ID string

	// Name is an optional human-readable label.
	Name string

	Shell string
	Cwd   string

	CreatedAt time.Time

	proc   backend.PtyProcess
	buffer *Buffer
	logger *logging.Logger
	cfg    Config

	mu           sync.Mutex
	status       Status
	lastCommand  string
	lastActivity time.Time

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int

	// endWatch, when non-nil, is checked against incoming data by the
	// command wait; see exec.go.
	endWatch *endWatcher
}

func newSession(id, name, shell, cwd string, cfg Config, logger *logging.Logger) *Session {
	return &Session{
		ID:           id,
		Name:         name,
		Shell:        shell,
		Cwd:          cwd,
		CreatedAt:    time.Now(),
		cfg:          cfg,
		buffer:       NewBuffer(cfg.BufferSize),
		logger:       logger.WithSession(id),
		status:       StatusInitializing,
		lastActivity: time.Now(),
		listeners:    make(map[int]Listener),
	}
}

// attach wires the session to its PTY process. Data and exit callbacks are
// registered before the session is published, so no output is lost.
func (s *Session) attach(proc backend.PtyProcess) {
	s.proc = proc
	proc.OnData(s.handleData)
}

// handleData is the single PTY data callback: append to the capture buffer,
// poke the command waiter, then fan out to listeners.
func (s *Session) handleData(data []byte) {
	s.buffer.Append(data)

	s.mu.Lock()
	s.lastActivity = time.Now()
	watch := s.endWatch
	s.mu.Unlock()

	if watch != nil {
		watch.check(s.buffer)
	}

	s.listenerMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()
	for _, fn := range fns {
		fn(data)
	}
}

// AddListener registers a raw-output listener and returns a handle for
// RemoveListener.
func (s *Session) AddListener(fn Listener) int {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return id
}

// RemoveListener deregisters a listener. Unknown handles are ignored.
func (s *Session) RemoveListener(id int) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	delete(s.listeners, id)
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastCommand returns the most recent command accepted by ExecuteCommand.
func (s *Session) LastCommand() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommand
}

// LastActivity returns the time of the most recent PTY output or command.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Output returns the current raw capture buffer contents.
func (s *Session) Output() string {
	return s.buffer.String()
}

// SendInput writes raw bytes to the PTY without the command protocol. It
// does not require the session to be idle; it exists for answering
// interactive prompts of a running command.
func (s *Session) SendInput(data []byte) error {
	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return muxerrors.ErrSessionClosed
	}
	s.lastActivity = time.Now()
	s.mu.Unlock()
	return s.proc.Write(data)
}

// Interrupt sends Ctrl-C to the foreground process group.
func (s *Session) Interrupt() error {
	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return muxerrors.ErrSessionClosed
	}
	s.mu.Unlock()
	return s.proc.Write([]byte{0x03})
}

// Resize changes the PTY dimensions.
func (s *Session) Resize(cols, rows uint16) error {
	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return muxerrors.ErrSessionClosed
	}
	s.mu.Unlock()
	return s.proc.Resize(cols, rows)
}

// markReady transitions initializing to ready once the shell has settled.
func (s *Session) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusInitializing {
		s.status = StatusReady
	}
}

// markClosed transitions the session to closed. Idempotent.
func (s *Session) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusClosed
}

// beginCommand atomically checks that the session can accept a command and
// moves it to busy. The check and the transition hold the same lock, so two
// concurrent callers cannot both pass.
func (s *Session) beginCommand(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case StatusClosed:
		return muxerrors.ErrSessionClosed
	case StatusBusy:
		return muxerrors.NewSessionError("rejected", muxerrors.ErrSessionBusy).
			WithSessionID(s.ID).
			WithCommand(s.lastCommand)
	case StatusError:
		return muxerrors.NewSessionError("rejected", muxerrors.ErrSessionClosed).
			WithSessionID(s.ID)
	}
	s.status = StatusBusy
	s.lastCommand = command
	s.lastActivity = time.Now()
	return nil
}

// endCommand returns the session to ready unless it was closed while the
// command ran.
func (s *Session) endCommand() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusBusy {
		s.status = StatusReady
	}
	s.lastActivity = time.Now()
}
