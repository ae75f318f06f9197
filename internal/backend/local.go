package backend

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	muxerrors "github.com/shellmux/shellmux/internal/errors"
	"github.com/shellmux/shellmux/internal/logging"
)

// LocalBackend runs shells and commands as child processes on this machine.
type LocalBackend struct {
	shell  string
	cwd    string
	logger *logging.Logger
}

// NewLocal creates a backend using the caller's environment: $SHELL (falling
// back to /bin/bash, then /bin/sh) and the current working directory.
func NewLocal(logger *logging.Logger) *LocalBackend {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &LocalBackend{
		shell:  detectShell(),
		cwd:    detectCwd(),
		logger: logger.WithComponent("backend"),
	}
}

func detectShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	for _, candidate := range []string{"/bin/bash", "/bin/sh"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "/bin/sh"
}

func detectCwd() string {
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "/"
}

func (b *LocalBackend) DefaultShell() string { return b.shell }
func (b *LocalBackend) DefaultCwd() string   { return b.cwd }

// CreatePty launches a shell attached to a new pseudo-terminal and starts
// pumping its output. Register OnData and OnExit callbacks immediately; bytes
// read before any callback is registered are dropped.
func (b *LocalBackend) CreatePty(opts PtyOptions) (PtyProcess, error) {
	shell := opts.Shell
	if shell == "" {
		shell = b.shell
	}
	cwd := opts.Cwd
	if cwd == "" {
		cwd = b.cwd
	}
	cols, rows := opts.Cols, opts.Rows
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}

	cmd := exec.Command(shell)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.Env = append(cmd.Env, opts.Env...)

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, muxerrors.Wrapf(muxerrors.ErrSessionCreateFailed, "starting %s: %v", shell, err)
	}

	b.logger.Debug("pty started", "shell", shell, "cwd", cwd, "pid", cmd.Process.Pid)

	p := &localProcess{
		f:          f,
		cmd:        cmd,
		logger:     b.logger,
		readerDone: make(chan struct{}),
	}
	go p.readLoop()
	go p.waitLoop()
	return p, nil
}

// Execute runs a single command through the default shell and returns its
// combined output. Output captured before a failure is returned alongside
// the error.
func (b *LocalBackend) Execute(ctx context.Context, command string, opts ExecOptions) (string, error) {
	cmd := exec.CommandContext(ctx, b.shell, "-c", command)
	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}
	cmd.Env = append(os.Environ(), opts.Env...)

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return string(out), muxerrors.NewTimeoutError("execute", time.Since(start))
		}
		return string(out), muxerrors.Wrapf(err, "running %q", command)
	}
	return string(out), nil
}

// localProcess is a shell child process attached to a PTY master. A reader
// goroutine pumps output to data callbacks; a waiter goroutine reaps the
// child and fires exit callbacks after the reader has drained.
type localProcess struct {
	f   *os.File
	cmd *exec.Cmd

	logger *logging.Logger

	mu     sync.Mutex
	onData []func([]byte)
	onExit []func(int)

	killOnce   sync.Once
	readerDone chan struct{}
}

func (p *localProcess) OnData(fn func(data []byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onData = append(p.onData, fn)
}

func (p *localProcess) OnExit(fn func(code int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onExit = append(p.onExit, fn)
}

func (p *localProcess) Write(data []byte) error {
	if _, err := p.f.Write(data); err != nil {
		return muxerrors.Wrap(err, "writing to pty")
	}
	return nil
}

func (p *localProcess) Resize(cols, rows uint16) error {
	if err := pty.Setsize(p.f, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return muxerrors.Wrap(err, "resizing pty")
	}
	return nil
}

func (p *localProcess) Kill() error {
	var err error
	p.killOnce.Do(func() {
		if p.cmd.Process != nil {
			err = p.cmd.Process.Kill()
		}
	})
	return err
}

func (p *localProcess) readLoop() {
	defer close(p.readerDone)

	buf := make([]byte, 4096)
	for {
		n, err := p.f.Read(buf)
		if n > 0 {
			p.mu.Lock()
			callbacks := make([]func([]byte), len(p.onData))
			copy(callbacks, p.onData)
			p.mu.Unlock()
			for _, fn := range callbacks {
				fn(buf[:n])
			}
		}
		if err != nil {
			// EIO is the normal master-side read error once the
			// shell exits and the slave closes.
			return
		}
	}
}

func (p *localProcess) waitLoop() {
	err := p.cmd.Wait()
	<-p.readerDone
	_ = p.f.Close()

	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	p.logger.Debug("shell exited", "pid", p.cmd.Process.Pid, "code", code)

	p.mu.Lock()
	callbacks := make([]func(int), len(p.onExit))
	copy(callbacks, p.onExit)
	p.mu.Unlock()
	for _, fn := range callbacks {
		fn(code)
	}
}
