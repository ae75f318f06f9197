package backend

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// FakeResponse scripts a fake shell's reaction to one command line.
type FakeResponse struct {
	// Output is emitted after the command echo, newline-terminated per
	// line by the fake.
	Output string

	// ExitCode is reported by the next exit-code interpolation.
	ExitCode int

	// Hang suppresses all output for the command, including any
	// subsequent marker echoes, simulating a command that never returns.
	Hang bool
}

// FakeBackend is a scripted Backend for tests. Its PTYs behave like a
// minimal shell: written lines are echoed back, echo commands print their
// argument with "$?" interpolated, and any other line is looked up in the
// Responses script.
type FakeBackend struct {
	mu sync.Mutex

	// Responses scripts PTY command lines, keyed by the exact line
	// written (without the trailing newline).
	Responses map[string]FakeResponse

	// OneShot scripts Execute calls, keyed by the exact command.
	OneShot map[string]string

	// CreateErr, when set, makes CreatePty fail.
	CreateErr error

	procs []*FakeProcess
}

// NewFake creates an empty scripted backend.
func NewFake() *FakeBackend {
	return &FakeBackend{
		Responses: make(map[string]FakeResponse),
		OneShot:   make(map[string]string),
	}
}

// Script registers the output and exit code for one command line.
func (b *FakeBackend) Script(command, output string, exitCode int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Responses[command] = FakeResponse{Output: output, ExitCode: exitCode}
}

// ScriptHang registers a command that produces no output and never
// completes.
func (b *FakeBackend) ScriptHang(command string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Responses[command] = FakeResponse{Hang: true}
}

func (b *FakeBackend) DefaultShell() string { return "/bin/fakesh" }
func (b *FakeBackend) DefaultCwd() string   { return "/tmp" }

func (b *FakeBackend) CreatePty(opts PtyOptions) (PtyProcess, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.CreateErr != nil {
		return nil, b.CreateErr
	}
	p := &FakeProcess{
		backend: b,
		emitCh:  make(chan []byte, 256),
		done:    make(chan struct{}),
	}
	go p.dispatch()
	b.procs = append(b.procs, p)
	return p, nil
}

func (b *FakeBackend) Execute(ctx context.Context, command string, opts ExecOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.OneShot[command], nil
}

// Procs returns every PTY the backend has created, in creation order.
func (b *FakeBackend) Procs() []*FakeProcess {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*FakeProcess, len(b.procs))
	copy(out, b.procs)
	return out
}

var (
	singleQuotedEchoRe = regexp.MustCompile(`^echo '([^']*)'$`)
	doubleQuotedEchoRe = regexp.MustCompile(`^echo "([^"]*)"$`)
)

// FakeProcess is a scripted PtyProcess. Output is delivered asynchronously
// on a dedicated goroutine, in write order, like a real PTY read pump.
type FakeProcess struct {
	backend *FakeBackend

	mu       sync.Mutex
	onData   []func([]byte)
	onExit   []func(int)
	writes   []string
	cols     uint16
	rows     uint16
	exitCode int
	hung     bool
	killed   bool

	emitCh chan []byte
	done   chan struct{}
}

func (p *FakeProcess) OnData(fn func(data []byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onData = append(p.onData, fn)
}

func (p *FakeProcess) OnExit(fn func(code int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onExit = append(p.onExit, fn)
}

// Write interprets one line the way a minimal shell would and queues the
// resulting output.
func (p *FakeProcess) Write(data []byte) error {
	input := strings.TrimRight(string(data), "\r\n")

	p.mu.Lock()
	if p.killed {
		p.mu.Unlock()
		return nil
	}
	p.writes = append(p.writes, input)
	hung := p.hung
	p.mu.Unlock()

	// Control bytes (interrupt etc.) produce no output.
	if input == "" || input == "\x03" {
		return nil
	}
	// A hung command swallows everything written after it.
	if hung {
		return nil
	}

	// Terminal echo of the typed line.
	p.emit(input + "\r\n")

	if m := singleQuotedEchoRe.FindStringSubmatch(input); m != nil {
		p.emit(m[1] + "\r\n")
		return nil
	}
	if m := doubleQuotedEchoRe.FindStringSubmatch(input); m != nil {
		p.mu.Lock()
		code := p.exitCode
		p.mu.Unlock()
		p.emit(strings.ReplaceAll(m[1], "$?", strconv.Itoa(code)) + "\r\n")
		return nil
	}

	p.backend.mu.Lock()
	resp, ok := p.backend.Responses[input]
	p.backend.mu.Unlock()

	if ok && resp.Hang {
		p.mu.Lock()
		p.hung = true
		p.mu.Unlock()
		return nil
	}

	p.mu.Lock()
	p.exitCode = resp.ExitCode
	p.mu.Unlock()
	if ok && resp.Output != "" {
		p.emit(strings.ReplaceAll(resp.Output, "\n", "\r\n") + "\r\n")
	}
	return nil
}

func (p *FakeProcess) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cols, p.rows = cols, rows
	return nil
}

// Kill marks the process dead and fires exit callbacks once.
func (p *FakeProcess) Kill() error {
	p.mu.Lock()
	if p.killed {
		p.mu.Unlock()
		return nil
	}
	p.killed = true
	callbacks := make([]func(int), len(p.onExit))
	copy(callbacks, p.onExit)
	p.mu.Unlock()

	close(p.done)
	for _, fn := range callbacks {
		fn(-1)
	}
	return nil
}

// Emit injects raw bytes into the output stream, bypassing the shell
// scripting. Tests use it to simulate spontaneous output.
func (p *FakeProcess) Emit(text string) {
	p.emit(text)
}

// Writes returns every line written to the PTY so far.
func (p *FakeProcess) Writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.writes))
	copy(out, p.writes)
	return out
}

// Size returns the last dimensions passed to Resize.
func (p *FakeProcess) Size() (cols, rows uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cols, p.rows
}

// Killed reports whether Kill has been called.
func (p *FakeProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *FakeProcess) emit(text string) {
	select {
	case p.emitCh <- []byte(text):
	case <-p.done:
	}
}

func (p *FakeProcess) dispatch() {
	for {
		select {
		case data := <-p.emitCh:
			p.mu.Lock()
			callbacks := make([]func([]byte), len(p.onData))
			copy(callbacks, p.onData)
			p.mu.Unlock()
			for _, fn := range callbacks {
				fn(data)
			}
		case <-p.done:
			return
		}
	}
}
