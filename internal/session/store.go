package session

import (
	"strings"
	"sync"
	"time"

	"github.com/shellmux/shellmux/internal/backend"
	muxerrors "github.com/shellmux/shellmux/internal/errors"
	"github.com/shellmux/shellmux/internal/logging"
)

// CreateOptions configures a new session.
type CreateOptions struct {
	// ID identifies the session. Required.
	ID string

	// Name is an optional human-readable label.
	Name string

	// Shell overrides the backend's default shell.
	Shell string

	// Cwd overrides the backend's default working directory.
	Cwd string

	// Env holds extra KEY=VALUE environment entries for the shell.
	Env []string
}

// Store owns every live session. All lookups and lifecycle transitions go
// through it; it holds no global state, so independent stores can coexist.
type Store struct {
	backend backend.Backend
	cfg     Config
	logger  *logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty store backed by the given backend.
func NewStore(b backend.Backend, cfg Config, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Store{
		backend:  b,
		cfg:      cfg,
		logger:   logger.WithComponent("session"),
		sessions: make(map[string]*Session),
	}
}

// CreateSession launches a new shell session. The session's data and exit
// callbacks are wired before this returns, so no early output is lost. The
// returned session has settled and is ready for commands.
func (st *Store) CreateSession(opts CreateOptions) (*Session, error) {
	if strings.TrimSpace(opts.ID) == "" {
		return nil, muxerrors.NewValidationError("session id cannot be empty").
			WithField("id")
	}

	shell := opts.Shell
	if shell == "" {
		shell = st.backend.DefaultShell()
	}
	cwd := opts.Cwd
	if cwd == "" {
		cwd = st.backend.DefaultCwd()
	}

	sess := newSession(opts.ID, opts.Name, shell, cwd, st.cfg, st.logger)

	// Reserve the slot before the PTY spawn so the existence and capacity
	// checks stay atomic without holding the lock across process launch.
	st.mu.Lock()
	if _, exists := st.sessions[opts.ID]; exists {
		st.mu.Unlock()
		return nil, muxerrors.NewAlreadyExistsError("session", opts.ID).
			WithCause(muxerrors.ErrSessionAlreadyExists)
	}
	if st.cfg.MaxSessions > 0 && len(st.sessions) >= st.cfg.MaxSessions {
		st.mu.Unlock()
		return nil, muxerrors.NewSessionError("create rejected", muxerrors.ErrMaxSessionsReached).
			WithSessionID(opts.ID)
	}
	st.sessions[opts.ID] = sess
	st.mu.Unlock()

	proc, err := st.backend.CreatePty(backend.PtyOptions{
		Shell: shell,
		Cwd:   cwd,
		Env:   opts.Env,
		Cols:  st.cfg.Cols,
		Rows:  st.cfg.Rows,
	})
	if err != nil {
		st.mu.Lock()
		delete(st.sessions, opts.ID)
		st.mu.Unlock()
		st.logger.Error("pty spawn failed", "session_id", opts.ID, "error", err.Error())
		return nil, muxerrors.NewSessionError("create failed", muxerrors.ErrSessionCreateFailed).
			WithSessionID(opts.ID).
			WithSeverity(muxerrors.SeverityError)
	}

	sess.attach(proc)
	proc.OnExit(func(code int) {
		sess.markClosed()
		st.mu.Lock()
		if st.sessions[opts.ID] == sess {
			delete(st.sessions, opts.ID)
		}
		st.mu.Unlock()
		st.logger.Info("session shell exited", "session_id", opts.ID, "code", code)
	})

	// Let the shell print its banner and first prompt before the session
	// accepts commands.
	time.Sleep(st.cfg.SettleDelay)
	sess.markReady()

	st.logger.Info("session created", "session_id", opts.ID, "shell", shell, "cwd", cwd)
	return sess, nil
}

// GetSession returns the session with the given id.
func (st *Store) GetSession(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, muxerrors.NewNotFoundError("session", id).
			WithCause(muxerrors.ErrSessionNotFound)
	}
	return sess, nil
}

// GetOrCreateSession returns the existing session with the given id, or
// creates one with the given options.
func (st *Store) GetOrCreateSession(opts CreateOptions) (*Session, error) {
	st.mu.Lock()
	if sess, ok := st.sessions[opts.ID]; ok {
		st.mu.Unlock()
		return sess, nil
	}
	st.mu.Unlock()

	sess, err := st.CreateSession(opts)
	if err != nil {
		// A concurrent creator may have won the slot.
		if muxerrors.Is(err, muxerrors.ErrSessionAlreadyExists) {
			return st.GetSession(opts.ID)
		}
		return nil, err
	}
	return sess, nil
}

// ListSessions returns every live session, in unspecified order.
func (st *Store) ListSessions() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		out = append(out, sess)
	}
	return out
}

// CloseSession terminates a session's shell and removes it from the store.
// It is idempotent: an unknown id is a no-op, and the kill itself is best
// effort because the shell may already be gone.
func (st *Store) CloseSession(id string) error {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()
	if !ok {
		return nil
	}

	sess.markClosed()
	if err := sess.proc.Kill(); err != nil {
		st.logger.Warn("kill failed during close", "session_id", id, "error", err.Error())
	}
	st.logger.Info("session closed", "session_id", id)
	return nil
}

// CloseAllSessions closes every live session and returns the ids closed.
func (st *Store) CloseAllSessions() []string {
	st.mu.Lock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	st.mu.Unlock()

	for _, id := range ids {
		// A shell that exited between the snapshot and here makes the
		// close a no-op.
		_ = st.CloseSession(id)
	}
	return ids
}

// ExecuteCommand runs a command on the named session, creating the session
// with backend defaults if it does not exist yet.
func (st *Store) ExecuteCommand(id, command string, timeout time.Duration) (*ExecResult, error) {
	sess, err := st.GetOrCreateSession(CreateOptions{ID: id})
	if err != nil {
		return nil, err
	}
	return sess.ExecuteCommand(command, timeout)
}

// ResizeSession changes the named session's PTY dimensions.
func (st *Store) ResizeSession(id string, cols, rows uint16) error {
	sess, err := st.GetSession(id)
	if err != nil {
		return err
	}
	return sess.Resize(cols, rows)
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
