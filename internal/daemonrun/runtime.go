package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ferry/internal/config"
	"ferry/internal/daemon"
	"ferry/internal/logging"
	"ferry/internal/preflight"
	"ferry/internal/queue"
	"ferry/internal/remote"
)

// Runtime is a started daemon together with the resources it owns.
type Runtime struct {
	Daemon    *daemon.Daemon
	Remote    remote.Store
	Preflight []preflight.Result

	logger *slog.Logger
}

// Open builds and starts the pipeline for cfg. When the remote passes its
// readiness check the daemon is marked ready, and when identity is non-empty
// the session is signed in; together these start a restore pass.
func Open(ctx context.Context, cfg *config.Config, identity string, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	dst, err := remote.New(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open remote store: %w", err)
	}
	d, err := daemon.New(cfg, store, dst, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}

	rt := &Runtime{Daemon: d, Remote: dst, logger: logger}
	rt.Preflight = preflight.RunAll(ctx, cfg, dst)
	for _, result := range rt.Preflight {
		if !result.Passed {
			logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldImpact, "uploads may fail until resolved"),
			)
		}
	}
	if remoteCheck, ok := preflight.Find(rt.Preflight, preflight.RemoteCheckName); ok && remoteCheck.Passed {
		if _, err := d.SetReady(true); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	if identity != "" {
		if _, err := d.SignIn(identity); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	return rt, nil
}

// Ready reports whether the remote passed its startup readiness check.
func (r *Runtime) Ready() bool {
	check, ok := preflight.Find(r.Preflight, preflight.RemoteCheckName)
	return ok && check.Passed
}

// WatchReadiness re-checks the remote every interval and forwards changes to
// the daemon until ctx ends.
func (r *Runtime) WatchReadiness(ctx context.Context, interval time.Duration) {
	ready := r.Ready()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		check := preflight.CheckRemote(ctx, r.Remote)
		if check.Passed == ready {
			continue
		}
		ready = check.Passed
		if ready {
			r.logger.Info("remote store reachable", logging.String("detail", check.Detail))
		} else {
			logging.WarnWithContext(r.logger, "remote store unreachable", "remote_unready",
				logging.String("detail", check.Detail),
				logging.String(logging.FieldImpact, "session restore waits for the remote"),
			)
		}
		if _, err := r.Daemon.SetReady(ready); err != nil {
			return
		}
	}
}

// Close stops the daemon and releases the queue store and remote clients.
func (r *Runtime) Close() error {
	return r.Daemon.Close()
}
