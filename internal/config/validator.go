package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "session.output_buffer_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validateProcess()...)
	errors = append(errors, c.validateTail()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	if c.Session.MaxSessions < 1 {
		errors = append(errors, ValidationError{
			Field:   "session.max_sessions",
			Value:   c.Session.MaxSessions,
			Message: "must be at least 1",
		})
	}
	if c.Session.OutputBufferSize < 1024 {
		errors = append(errors, ValidationError{
			Field:   "session.output_buffer_size",
			Value:   c.Session.OutputBufferSize,
			Message: "must be at least 1024 bytes",
		})
	}
	if c.Session.SettleDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "session.settle_delay_ms",
			Value:   c.Session.SettleDelayMs,
			Message: "must not be negative",
		})
	}
	if c.Session.WritePacingMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "session.write_pacing_ms",
			Value:   c.Session.WritePacingMs,
			Message: "must not be negative",
		})
	}
	if c.Session.DefaultTimeoutMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "session.default_timeout_ms",
			Value:   c.Session.DefaultTimeoutMs,
			Message: "must be positive",
		})
	}
	if c.Session.Cols < 1 || c.Session.Cols > 1000 {
		errors = append(errors, ValidationError{
			Field:   "session.cols",
			Value:   c.Session.Cols,
			Message: "must be between 1 and 1000",
		})
	}
	if c.Session.Rows < 1 || c.Session.Rows > 1000 {
		errors = append(errors, ValidationError{
			Field:   "session.rows",
			Value:   c.Session.Rows,
			Message: "must be between 1 and 1000",
		})
	}

	return errors
}

func (c *Config) validateProcess() []ValidationError {
	var errors []ValidationError

	if c.Process.BufferSize < 1024 {
		errors = append(errors, ValidationError{
			Field:   "process.buffer_size",
			Value:   c.Process.BufferSize,
			Message: "must be at least 1024 bytes",
		})
	}
	if c.Process.PollIntervalMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "process.poll_interval_ms",
			Value:   c.Process.PollIntervalMs,
			Message: "must be positive",
		})
	}
	if c.Process.DefaultTimeoutMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "process.default_timeout_ms",
			Value:   c.Process.DefaultTimeoutMs,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateTail() []ValidationError {
	var errors []ValidationError

	if c.Tail.DefaultLines < 0 {
		errors = append(errors, ValidationError{
			Field:   "tail.default_lines",
			Value:   c.Tail.DefaultLines,
			Message: "must not be negative",
		})
	}
	if c.Tail.DefaultTimeoutMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "tail.default_timeout_ms",
			Value:   c.Tail.DefaultTimeoutMs,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must not be negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must not be negative",
		})
	}

	return errors
}
