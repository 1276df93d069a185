package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"ferry/internal/api"
	"ferry/internal/config"
	"ferry/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// ReadinessInterval is how often the remote is re-checked.
	ReadinessInterval time.Duration
}

const defaultReadinessInterval = 30 * time.Second

// Run starts the ferry daemon runtime loop and serves the HTTP API until
// SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "ferry.log")},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "ferry.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Open(signalCtx, cfg, cfg.Session.Identity, logger)
	if err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration, the lock file, and queue database access"),
		)
		return err
	}
	defer rt.Close()

	server := api.NewServer(rt.Daemon, api.Options{
		Bind:  cfg.Paths.APIBind,
		Token: cfg.Paths.APIToken,
	}, logger)
	if err := server.Start(signalCtx); err != nil {
		return err
	}
	defer server.Stop()

	interval := opts.ReadinessInterval
	if interval <= 0 {
		interval = defaultReadinessInterval
	}
	go rt.WatchReadiness(signalCtx, interval)

	<-signalCtx.Done()
	logger.Info("ferry daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("state_dir", cfg.Paths.StateDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", cfg.Paths.APIToken != ""),
		logging.String("remote_backend", cfg.Remote.Backend),
		logging.String("remote_bucket", cfg.Remote.Bucket),
		logging.String("remote_prefix", cfg.Remote.Prefix),
		logging.Int("concurrency", cfg.Upload.Concurrency),
		logging.Int("max_persist_mib", cfg.Queue.MaxPersistMiB),
		logging.Bool("session_identity_present", cfg.Session.Identity != ""),
	)
}
