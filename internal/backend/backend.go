// Package backend abstracts where shell sessions actually run. The session
// store, background poller, and log tailer all talk to a Backend; the local
// implementation spawns PTYs on this machine, and tests substitute a
// scripted fake.
package backend

import "context"

// PtyOptions configures a new PTY-backed shell process.
type PtyOptions struct {
	// Shell is the shell binary to launch. Empty selects the backend's
	// default shell.
	Shell string

	// Cwd is the working directory for the shell. Empty selects the
	// backend's default directory.
	Cwd string

	// Env holds extra environment variables, KEY=VALUE form, appended to
	// the inherited environment.
	Env []string

	// Cols and Rows set the initial terminal size.
	Cols uint16
	Rows uint16
}

// ExecOptions configures a one-shot command run outside any session.
type ExecOptions struct {
	// Cwd is the working directory for the command. Empty inherits the
	// process working directory.
	Cwd string

	// Env holds extra environment variables appended to the inherited
	// environment.
	Env []string
}

// PtyProcess is a live shell process attached to a pseudo-terminal. Data and
// exit callbacks must be registered before the first Write; the implementation
// may deliver data from a dedicated goroutine, so callbacks must be safe to
// call concurrently with the owner's methods.
type PtyProcess interface {
	// OnData registers a callback for raw bytes read from the PTY. The
	// byte slice is only valid for the duration of the call.
	OnData(fn func(data []byte))

	// OnExit registers a callback invoked once when the shell process
	// terminates, with its exit code.
	OnExit(fn func(code int))

	// Write sends bytes to the PTY as if typed at the terminal.
	Write(p []byte) error

	// Resize changes the terminal dimensions.
	Resize(cols, rows uint16) error

	// Kill terminates the shell process. It is safe to call more than
	// once; after the first call subsequent calls are no-ops.
	Kill() error
}

// Backend creates shell processes and runs one-shot commands.
type Backend interface {
	// CreatePty launches a new shell attached to a pseudo-terminal.
	CreatePty(opts PtyOptions) (PtyProcess, error)

	// DefaultShell returns the shell used when PtyOptions.Shell is empty.
	DefaultShell() string

	// DefaultCwd returns the directory used when PtyOptions.Cwd is empty.
	DefaultCwd() string

	// Execute runs a single command outside any session and returns its
	// combined output. The context bounds the command's runtime.
	Execute(ctx context.Context, command string, opts ExecOptions) (string, error)
}
