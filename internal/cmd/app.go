package cmd

import (
	"fmt"

	"github.com/shellmux/shellmux/internal/backend"
	"github.com/shellmux/shellmux/internal/bgproc"
	"github.com/shellmux/shellmux/internal/config"
	"github.com/shellmux/shellmux/internal/logging"
	"github.com/shellmux/shellmux/internal/logtail"
	"github.com/shellmux/shellmux/internal/session"
)

// app bundles the wired components a command needs. Each CLI invocation
// builds its own app from the effective configuration; nothing is global.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	backend *backend.LocalBackend
	store   *session.Store
	poller  *bgproc.Poller
	tailer  *logtail.Tailer
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logDir := cfg.Logging.Dir
		if logDir == "" {
			logDir = config.ConfigDir()
		}
		logger, err = logging.NewLogger(logDir, cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing logging: %w", err)
		}
	}

	be := backend.NewLocal(logger)
	store := session.NewStore(be, session.Config{
		MaxSessions:    cfg.Session.MaxSessions,
		BufferSize:     cfg.Session.OutputBufferSize,
		SettleDelay:    cfg.Session.SettleDelay(),
		WritePacing:    cfg.Session.WritePacing(),
		DefaultTimeout: cfg.Session.DefaultTimeout(),
		Cols:           uint16(cfg.Session.Cols),
		Rows:           uint16(cfg.Session.Rows),
	}, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		backend: be,
		store:   store,
		poller: bgproc.NewPoller(store, bgproc.Config{
			BufferSize:     cfg.Process.BufferSize,
			DefaultTimeout: cfg.Process.DefaultTimeout(),
			PollInterval:   cfg.Process.PollInterval(),
		}, logger),
		tailer: logtail.NewTailer(store, be, logtail.Config{
			DefaultLines:   cfg.Tail.DefaultLines,
			CommandTimeout: cfg.Tail.DefaultTimeout(),
		}, logger),
	}, nil
}

// close tears down every session and flushes logging.
func (a *app) close() {
	a.store.CloseAllSessions()
	_ = a.logger.Close()
}
