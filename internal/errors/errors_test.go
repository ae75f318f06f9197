package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// SessionError Tests
// -----------------------------------------------------------------------------

func TestNewSessionError(t *testing.T) {
	cause := ErrSessionBusy
	err := NewSessionError("failed to execute command", cause)

	if err.message != "failed to execute command" {
		t.Errorf("message = %q, want %q", err.message, "failed to execute command")
	}
	if err.cause != cause {
		t.Errorf("cause = %v, want %v", err.cause, cause)
	}
	if err.Severity() != SeverityError {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityError)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
}

func TestSessionError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *SessionError
		want string
	}{
		{
			name: "message only",
			err:  NewSessionError("create failed", nil),
			want: "session error: create failed",
		},
		{
			name: "with cause",
			err:  NewSessionError("create failed", ErrMaxSessionsReached),
			want: "session error: create failed: maximum number of sessions reached",
		},
		{
			name: "with session ID",
			err:  NewSessionError("create failed", nil).WithSessionID("shell-1"),
			want: "session error [session=shell-1]: create failed",
		},
		{
			name: "with session ID and command",
			err:  NewSessionError("rejected", ErrSessionBusy).WithSessionID("shell-1").WithCommand("ls"),
			want: `session error [session=shell-1, command="ls"]: rejected: session is busy`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionError_Is(t *testing.T) {
	err := NewSessionError("rejected", ErrSessionBusy)

	if !errors.Is(err, ErrSessionBusy) {
		t.Error("errors.Is(err, ErrSessionBusy) = false, want true")
	}
	if errors.Is(err, ErrSessionClosed) {
		t.Error("errors.Is(err, ErrSessionClosed) = true, want false")
	}

	var sessErr *SessionError
	if !errors.As(err, &sessErr) {
		t.Error("errors.As(err, *SessionError) = false, want true")
	}
}

func TestSessionError_Wrapped(t *testing.T) {
	inner := NewSessionError("rejected", ErrSessionBusy).WithSessionID("shell-9")
	outer := fmt.Errorf("handling request: %w", inner)

	if !errors.Is(outer, ErrSessionBusy) {
		t.Error("wrapped error lost ErrSessionBusy identity")
	}

	var sessErr *SessionError
	if !errors.As(outer, &sessErr) {
		t.Fatal("errors.As failed on wrapped SessionError")
	}
	if sessErr.SessionID != "shell-9" {
		t.Errorf("SessionID = %q, want %q", sessErr.SessionID, "shell-9")
	}
}

// -----------------------------------------------------------------------------
// ProcessError / TailError Tests
// -----------------------------------------------------------------------------

func TestProcessError_Error(t *testing.T) {
	err := NewProcessError("poll failed", ErrProcessNotFound).
		WithProcessID("proc-1").
		WithSessionID("shell-1")

	got := err.Error()
	if !strings.Contains(got, "process=proc-1") || !strings.Contains(got, "session=shell-1") {
		t.Errorf("Error() = %q, missing context fields", got)
	}
	if !errors.Is(err, ErrProcessNotFound) {
		t.Error("errors.Is(err, ErrProcessNotFound) = false, want true")
	}
}

func TestTailError_Error(t *testing.T) {
	err := NewTailError("size query failed", ErrFileRead).
		WithTailID("tail-1").
		WithFilePath("/var/log/app.log")

	got := err.Error()
	if !strings.Contains(got, "tail=tail-1") || !strings.Contains(got, "file=/var/log/app.log") {
		t.Errorf("Error() = %q, missing context fields", got)
	}
	if !errors.Is(err, ErrFileRead) {
		t.Error("errors.Is(err, ErrFileRead) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("session", "shell-abc")

	want := "session 'shell-abc' not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	withCause := NewNotFoundError("session", "shell-abc").WithCause(ErrSessionNotFound)
	if !errors.Is(withCause, ErrSessionNotFound) {
		t.Error("errors.Is with cause = false, want true")
	}
}

func TestAlreadyExistsError(t *testing.T) {
	err := NewAlreadyExistsError("session", "shell-abc")
	want := "session 'shell-abc' already exists"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("command cannot be empty").
		WithField("command").
		WithValue("")

	got := err.Error()
	if !strings.Contains(got, "field=command") {
		t.Errorf("Error() = %q, missing field context", got)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("waiting for session to settle", 2*time.Second)

	want := "timeout error: waiting for session to settle (timeout: 2s)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("TimeoutError should match ErrTimeout")
	}
	if !err.IsRetryable() {
		t.Error("timeouts should default to retryable")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout error", NewTimeoutError("op", time.Second), true},
		{"wrapped ErrTimeout", fmt.Errorf("op: %w", ErrTimeout), true},
		{"session error", NewSessionError("failed", nil), false},
		{"retryable session error", NewSessionError("failed", nil).WithRetryable(true), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsPrecondition(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", NewSessionError("rejected", ErrSessionBusy), true},
		{"closed", fmt.Errorf("exec: %w", ErrSessionClosed), true},
		{"capacity", ErrMaxSessionsReached, true},
		{"empty command", ErrCommandEmpty, true},
		{"process missing", NewProcessError("poll", ErrProcessNotFound), true},
		{"plain error", errors.New("boom"), false},
		{"create failed", ErrSessionCreateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPrecondition(tt.err); got != tt.want {
				t.Errorf("IsPrecondition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want %v", got, SeverityDebug)
	}
	if got := GetSeverity(NewNotFoundError("session", "x")); got != SeverityWarning {
		t.Errorf("GetSeverity(NotFoundError) = %v, want %v", got, SeverityWarning)
	}
	if got := GetSeverity(errors.New("boom")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want %v", got, SeverityError)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	err := Wrap(ErrSessionClosed, "executing command")
	if !errors.Is(err, ErrSessionClosed) {
		t.Error("Wrap should preserve the cause chain")
	}
	want := "executing command: session is closed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	errf := Wrapf(ErrSessionClosed, "executing on %s", "shell-1")
	if errf.Error() != "executing on shell-1: session is closed" {
		t.Errorf("Wrapf Error() = %q", errf.Error())
	}
}
