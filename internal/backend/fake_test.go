package backend

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shellmux/shellmux/internal/testutil"
)

// collectOutput registers a data callback that accumulates everything the
// process emits.
func collectOutput(p PtyProcess) func() string {
	var mu sync.Mutex
	var buf strings.Builder
	p.OnData(func(data []byte) {
		mu.Lock()
		buf.Write(data)
		mu.Unlock()
	})
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return buf.String()
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	testutil.RequireEventually(t, 2*time.Second, cond, "condition not met within 2s")
}

func TestFakeProcessEchoesSingleQuoted(t *testing.T) {
	b := NewFake()
	p, err := b.CreatePty(PtyOptions{})
	if err != nil {
		t.Fatalf("CreatePty: %v", err)
	}
	output := collectOutput(p)

	if err := p.Write([]byte("echo 'MARKER_123'\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	waitFor(t, func() bool {
		return strings.Count(output(), "MARKER_123") == 2
	})
	// First occurrence is the terminal echo of the typed line, second is
	// the echo command's output.
	if !strings.Contains(output(), "echo 'MARKER_123'\r\n") {
		t.Errorf("missing terminal echo in %q", output())
	}
}

func TestFakeProcessInterpolatesExitCode(t *testing.T) {
	b := NewFake()
	b.Script("false", "", 1)
	p, err := b.CreatePty(PtyOptions{})
	if err != nil {
		t.Fatalf("CreatePty: %v", err)
	}
	output := collectOutput(p)

	p.Write([]byte("false\n"))
	p.Write([]byte("echo \"EXIT_$?\"\n"))

	waitFor(t, func() bool {
		return strings.Contains(output(), "EXIT_1\r\n")
	})
}

func TestFakeProcessScriptedCommand(t *testing.T) {
	b := NewFake()
	b.Script("ls", "file1\nfile2", 0)
	p, _ := b.CreatePty(PtyOptions{})
	output := collectOutput(p)

	p.Write([]byte("ls\n"))

	waitFor(t, func() bool {
		return strings.Contains(output(), "file1\r\nfile2\r\n")
	})
}

func TestFakeProcessHangSwallowsLaterWrites(t *testing.T) {
	b := NewFake()
	b.ScriptHang("sleep forever")
	p, _ := b.CreatePty(PtyOptions{})
	output := collectOutput(p)

	p.Write([]byte("sleep forever\n"))
	p.Write([]byte("echo 'AFTER'\n"))

	waitFor(t, func() bool {
		return strings.Contains(output(), "sleep forever")
	})
	testutil.RequireNever(t, 50*time.Millisecond, func() bool {
		return strings.Contains(output(), "AFTER")
	}, "hung process produced output for a later write")
}

func TestFakeProcessKill(t *testing.T) {
	b := NewFake()
	p, _ := b.CreatePty(PtyOptions{})

	exited := make(chan int, 1)
	p.OnExit(func(code int) { exited <- code })

	if err := p.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	select {
	case code := <-exited:
		if code != -1 {
			t.Errorf("exit code = %d, want -1", code)
		}
	case <-time.After(time.Second):
		t.Fatal("exit callback not fired")
	}

	// Second kill is a no-op.
	if err := p.Kill(); err != nil {
		t.Errorf("second Kill: %v", err)
	}
	if !p.(*FakeProcess).Killed() {
		t.Error("Killed() = false after Kill")
	}
}

func TestFakeBackendExecute(t *testing.T) {
	b := NewFake()
	b.OneShot["stat -c%s /var/log/app.log"] = "1024\n"

	out, err := b.Execute(context.Background(), "stat -c%s /var/log/app.log", ExecOptions{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "1024\n" {
		t.Errorf("output = %q, want %q", out, "1024\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Execute(ctx, "anything", ExecOptions{}); err == nil {
		t.Error("Execute with canceled context should fail")
	}
}

func TestDetectShellFallsBack(t *testing.T) {
	t.Setenv("SHELL", "/nonexistent/shell")
	shell := detectShell()
	if shell == "/nonexistent/shell" {
		t.Errorf("detectShell returned missing shell %q", shell)
	}
	if shell == "" {
		t.Error("detectShell returned empty string")
	}
}
