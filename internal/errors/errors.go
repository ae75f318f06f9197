// Package errors provides centralized error definitions and error handling
// utilities for the shellmux codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - SessionError: errors related to shell session management
//   - ProcessError: errors related to background process execution
//   - TailError: errors related to log tailing
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewSessionError("failed to execute command", errors.ErrSessionBusy)
//
//	// Semantic error
//	err := errors.NewNotFoundError("session", "shell-abc123")
//
//	// With context wrapping
//	err := errors.NewSessionError("create failed", baseErr).WithSessionID("shell-1")
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrSessionBusy) { ... }
//
//	// Check for error types
//	var sessErr *errors.SessionError
//	if errors.As(err, &sessErr) { ... }
//
// Note that a command timeout is deliberately NOT represented as an error:
// ExecuteCommand reports it as a structured result field (TimedOut) because
// the caller usually wants the degraded-but-valid answer. Typed failures are
// reserved for precondition and capacity violations.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrSessionNotFound indicates that a session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrSessionAlreadyExists indicates an ID collision with a live session.
	ErrSessionAlreadyExists = New("session already exists")
	// ErrSessionBusy indicates a command is already in flight on the session.
	ErrSessionBusy = New("session is busy")
	// ErrSessionClosed indicates the session has been closed.
	ErrSessionClosed = New("session is closed")
	// ErrMaxSessionsReached indicates the store is at capacity.
	ErrMaxSessionsReached = New("maximum number of sessions reached")
	// ErrSessionCreateFailed indicates the backend failed to allocate a PTY.
	ErrSessionCreateFailed = New("session creation failed")
	// ErrCommandEmpty indicates an empty or whitespace-only command.
	ErrCommandEmpty = New("command is empty")
)

// Background process and tail sentinel errors
var (
	// ErrProcessNotFound indicates that a background process could not be found.
	ErrProcessNotFound = New("background process not found")
	// ErrTailNotFound indicates that a log tail could not be found.
	ErrTailNotFound = New("log tail not found")
)

// Collaborator-surfaced sentinel errors
var (
	// ErrFileRead indicates a remote file could not be read.
	ErrFileRead = New("file read failed")
	// ErrFileWrite indicates a remote file could not be written.
	ErrFileWrite = New("file write failed")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// MuxError is the base interface for all shellmux errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type MuxError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SessionError represents errors related to shell session management.
//
// Example:
//
//	err := errors.NewSessionError("failed to execute command", errors.ErrSessionBusy)
//	err = err.WithSessionID("shell-abc123")
//	fmt.Println(err) // "session error [session=shell-abc123]: failed to execute command: session is busy"
type SessionError struct {
	baseError
	SessionID string
	Command   string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithCommand adds the offending command text to the error context.
func (e *SessionError) WithCommand(command string) *SessionError {
	e.Command = command
	return e
}

// WithSeverity sets the error severity.
func (e *SessionError) WithSeverity(s Severity) *SessionError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *SessionError) WithRetryable(r bool) *SessionError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Command != "" {
		parts = append(parts, fmt.Sprintf("command=%q", e.Command))
	}

	prefix := "session error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("session error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ProcessError represents errors related to background process execution.
//
// Example:
//
//	err := errors.NewProcessError("poll failed", errors.ErrProcessNotFound)
//	err = err.WithProcessID("proc-1").WithSessionID("shell-abc")
type ProcessError struct {
	baseError
	ProcessID string
	SessionID string
}

// NewProcessError creates a new ProcessError.
func NewProcessError(message string, cause error) *ProcessError {
	return &ProcessError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithProcessID adds a background process ID to the error context.
func (e *ProcessError) WithProcessID(id string) *ProcessError {
	e.ProcessID = id
	return e
}

// WithSessionID adds the owning session ID to the error context.
func (e *ProcessError) WithSessionID(id string) *ProcessError {
	e.SessionID = id
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ProcessError) WithRetryable(r bool) *ProcessError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ProcessError) Error() string {
	var parts []string
	if e.ProcessID != "" {
		parts = append(parts, fmt.Sprintf("process=%s", e.ProcessID))
	}
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}

	prefix := "process error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("process error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ProcessError) Is(target error) bool {
	if _, ok := target.(*ProcessError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TailError represents errors related to log tailing.
type TailError struct {
	baseError
	TailID   string
	FilePath string
}

// NewTailError creates a new TailError.
func NewTailError(message string, cause error) *TailError {
	return &TailError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithTailID adds a tail ID to the error context.
func (e *TailError) WithTailID(id string) *TailError {
	e.TailID = id
	return e
}

// WithFilePath adds the target file path to the error context.
func (e *TailError) WithFilePath(path string) *TailError {
	e.FilePath = path
	return e
}

// Error returns the formatted error message.
func (e *TailError) Error() string {
	var parts []string
	if e.TailID != "" {
		parts = append(parts, fmt.Sprintf("tail=%s", e.TailID))
	}
	if e.FilePath != "" {
		parts = append(parts, fmt.Sprintf("file=%s", e.FilePath))
	}

	prefix := "tail error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("tail error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TailError) Is(target error) bool {
	if _, ok := target.(*TailError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("session", "shell-abc123")
//	fmt.Println(err) // "session 'shell-abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("command cannot be empty")
//	err = err.WithField("command").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Command timeouts are reported as a structured result instead; this type is
// for operations where a typed failure is appropriate (e.g. waiting for a
// session to settle during creation).
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			severity:  SeverityWarning,
			retryable: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var muxErr MuxError
	if As(err, &muxErr) {
		return muxErr.IsRetryable()
	}

	if Is(err, ErrTimeout) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement MuxError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var muxErr MuxError
	if As(err, &muxErr) {
		return muxErr.Severity()
	}

	return SeverityError
}

// IsPrecondition returns true if the error is a precondition or capacity
// violation on a store operation (the class of failures raised before any
// state is mutated).
func IsPrecondition(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrSessionNotFound) ||
		Is(err, ErrSessionAlreadyExists) ||
		Is(err, ErrSessionBusy) ||
		Is(err, ErrSessionClosed) ||
		Is(err, ErrMaxSessionsReached) ||
		Is(err, ErrCommandEmpty) ||
		Is(err, ErrProcessNotFound) ||
		Is(err, ErrTailNotFound)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
