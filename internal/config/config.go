package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete shellmux configuration
type Config struct {
	Session Sessions `mapstructure:"session"`
	Process Process  `mapstructure:"process"`
	Tail    Tail     `mapstructure:"tail"`
	Backend Backend  `mapstructure:"backend"`
	Logging Logging  `mapstructure:"logging"`
}

// Sessions controls session store and command protocol behavior
type Sessions struct {
	// MaxSessions is the maximum number of live sessions the store accepts
	MaxSessions int `mapstructure:"max_sessions"`
	// OutputBufferSize is the size of the per-session capture buffer in bytes
	OutputBufferSize int `mapstructure:"output_buffer_size"`
	// SettleDelayMs is the fixed settle period after PTY allocation and after
	// end-marker detection, allowing trailing asynchronous output to land
	SettleDelayMs int `mapstructure:"settle_delay_ms"`
	// WritePacingMs is the pause between the individual marker/command writes
	WritePacingMs int `mapstructure:"write_pacing_ms"`
	// DefaultTimeoutMs is the default foreground command timeout
	DefaultTimeoutMs int `mapstructure:"default_timeout_ms"`
	// Cols is the default PTY width
	Cols int `mapstructure:"cols"`
	// Rows is the default PTY height
	Rows int `mapstructure:"rows"`
}

// Process controls background process execution
type Process struct {
	// BufferSize is the size of the per-process capture buffer in bytes
	BufferSize int `mapstructure:"buffer_size"`
	// PollIntervalMs is the default poll interval suggested to callers
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// DefaultTimeoutMs is the default background command timeout
	DefaultTimeoutMs int `mapstructure:"default_timeout_ms"`
}

// Tail controls log tailing
type Tail struct {
	// DefaultLines is the number of lines in the initial snapshot
	DefaultLines int `mapstructure:"default_lines"`
	// DefaultTimeoutMs is the timeout for the read-only shell commands a tail issues
	DefaultTimeoutMs int `mapstructure:"default_timeout_ms"`
}

// Backend controls the pseudo-terminal backend
type Backend struct {
	// Shell overrides the backend's default shell when non-empty
	Shell string `mapstructure:"shell"`
	// Cwd overrides the backend's default working directory when non-empty
	Cwd string `mapstructure:"cwd"`
}

// Logging controls debug logging behavior
type Logging struct {
	// Enabled turns file logging on or off
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level"`
	// Dir is the log directory; empty means stderr
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log size before rotation
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated logs to keep
	MaxBackups int `mapstructure:"max_backups"`
}

// Default returns a Config populated with default values
func Default() *Config {
	return &Config{
		Session: Sessions{
			MaxSessions:      10,
			OutputBufferSize: 1024 * 1024, // 1 MB
			SettleDelayMs:    200,
			WritePacingMs:    50,
			DefaultTimeoutMs: 30_000,
			Cols:             160,
			Rows:             40,
		},
		Process: Process{
			BufferSize:       10 * 1024 * 1024, // 10 MB
			PollIntervalMs:   1000,
			DefaultTimeoutMs: 300_000,
		},
		Tail: Tail{
			DefaultLines:     50,
			DefaultTimeoutMs: 300_000,
		},
		Backend: Backend{},
		Logging: Logging{
			Enabled:    true,
			Level:      "INFO",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SettleDelay returns the settle delay as a time.Duration
func (s *Sessions) SettleDelay() time.Duration {
	return time.Duration(s.SettleDelayMs) * time.Millisecond
}

// WritePacing returns the write pacing delay as a time.Duration
func (s *Sessions) WritePacing() time.Duration {
	return time.Duration(s.WritePacingMs) * time.Millisecond
}

// DefaultTimeout returns the default command timeout as a time.Duration
func (s *Sessions) DefaultTimeout() time.Duration {
	return time.Duration(s.DefaultTimeoutMs) * time.Millisecond
}

// PollInterval returns the poll interval as a time.Duration
func (p *Process) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// DefaultTimeout returns the default background timeout as a time.Duration
func (p *Process) DefaultTimeout() time.Duration {
	return time.Duration(p.DefaultTimeoutMs) * time.Millisecond
}

// DefaultTimeout returns the tail command timeout as a time.Duration
func (t *Tail) DefaultTimeout() time.Duration {
	return time.Duration(t.DefaultTimeoutMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("session.max_sessions", defaults.Session.MaxSessions)
	viper.SetDefault("session.output_buffer_size", defaults.Session.OutputBufferSize)
	viper.SetDefault("session.settle_delay_ms", defaults.Session.SettleDelayMs)
	viper.SetDefault("session.write_pacing_ms", defaults.Session.WritePacingMs)
	viper.SetDefault("session.default_timeout_ms", defaults.Session.DefaultTimeoutMs)
	viper.SetDefault("session.cols", defaults.Session.Cols)
	viper.SetDefault("session.rows", defaults.Session.Rows)

	viper.SetDefault("process.buffer_size", defaults.Process.BufferSize)
	viper.SetDefault("process.poll_interval_ms", defaults.Process.PollIntervalMs)
	viper.SetDefault("process.default_timeout_ms", defaults.Process.DefaultTimeoutMs)

	viper.SetDefault("tail.default_lines", defaults.Tail.DefaultLines)
	viper.SetDefault("tail.default_timeout_ms", defaults.Tail.DefaultTimeoutMs)

	viper.SetDefault("backend.shell", defaults.Backend.Shell)
	viper.SetDefault("backend.cwd", defaults.Backend.Cwd)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "shellmux")
	}
	// Fall back to ~/.config/shellmux
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shellmux"
	}
	return filepath.Join(home, ".config", "shellmux")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
